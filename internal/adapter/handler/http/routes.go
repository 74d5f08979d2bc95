package http

import (
	"github.com/labstack/echo/v4"
)

// RouteMiddleware holds the middleware chains applied to protected routes.
type RouteMiddleware struct {
	// Authenticated guards staff routes.
	Authenticated []echo.MiddlewareFunc
	// Admin guards destructive and operator routes; it runs after Authenticated.
	Admin []echo.MiddlewareFunc
}

// RegisterRoutes mounts the payment API on e.
func RegisterRoutes(e *echo.Echo, payments *PaymentHandler, push *PushPaymentHandler, mw RouteMiddleware) {
	admin := append(append([]echo.MiddlewareFunc{}, mw.Authenticated...), mw.Admin...)

	// Public routes: the patient-facing prompt and the gateway callback.
	e.POST("/payments/initiate", push.Initiate)
	e.POST("/payments/payment-callback/:appointmentId", push.Callback)

	e.POST("/payments", payments.CreatePayment, mw.Authenticated...)
	e.GET("/payments", payments.ListPayments, mw.Authenticated...)
	e.GET("/payments/:id", payments.GetPayment, mw.Authenticated...)
	e.GET("/payments/full/:id", payments.GetFullPayment, mw.Authenticated...)
	e.GET("/payments/appointment/:appointmentID", payments.GetPaymentsByAppointment, mw.Authenticated...)
	e.PUT("/payments/:id", payments.UpdatePayment, admin...)
	e.DELETE("/payments/:id", payments.DeletePayment, admin...)

	e.GET("/payments/callbacks/unresolved", push.ListUnresolvedCallbacks, admin...)
	e.GET("/payments/callbacks/checkout/:checkoutRequestID", push.CallbackHistory, admin...)
}
