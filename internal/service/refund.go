package service

import "geoconnect/internal/models"

// RefundPolicy decides what a cancellation gives back. The amount is in
// minor units of the booking currency.
type RefundPolicy interface {
	Evaluate(previousStatus models.BookingStatus, totalAmount int64) models.RefundView
}

// SimpleRefundPolicy refunds reservations in full before payment and
// nothing afterwards. Paid cancellations go through support for now.
type SimpleRefundPolicy struct{}

func DefaultRefundPolicy() RefundPolicy {
	return SimpleRefundPolicy{}
}

func (SimpleRefundPolicy) Evaluate(previousStatus models.BookingStatus, totalAmount int64) models.RefundView {
	view := models.RefundView{PolicyCode: "SIMPLE_POLICY"}
	switch previousStatus {
	case models.BookingPendingPayment:
		view.Eligible = true
		view.Amount = totalAmount
	case models.BookingConfirmed:
		view.Eligible = false
		view.Amount = 0
	}
	return view
}
