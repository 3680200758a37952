package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sixstreet/storefront/internal/checkout"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
}

type addressReq struct {
	AddressID string `json:"address_id"`
}

type courierReq struct {
	Courier string `json:"courier"`
}

type serviceReq struct {
	Service string `json:"service"`
}

type voucherReq struct {
	Code string `json:"code"`
}

type pointsReq struct {
	Points int `json:"points"`
}

type outcomeReq struct {
	Outcome string `json:"outcome"`
}

type submitResp struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Route("/checkout/{uuid}", func(r chi.Router) {
		r.Post("/", h.begin)
		r.Get("/", h.summary)
		r.Put("/address", h.selectAddress)
		r.Put("/courier", h.selectCourier)
		r.Put("/service", h.selectService)
		r.Post("/voucher", h.applyVoucher)
		r.Put("/points", h.usePoints)
		r.Post("/submit", h.submit)
		r.Post("/outcome", h.outcome)
	})
}

func (h *CheckoutHandler) session(r *http.Request) (*checkout.Session, error) {
	u, _ := UserFrom(r.Context())
	return h.Checkout.Session(u.UserID, chi.URLParam(r, "uuid"))
}

func (h *CheckoutHandler) begin(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	sess, err := h.Checkout.Begin(ctx, u.UserID, chi.URLParam(r, "uuid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (h *CheckoutHandler) summary(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

// mutate decodes req, runs fn on the live session and answers with the summary.
func (h *CheckoutHandler) mutate(w http.ResponseWriter, r *http.Request, req any, fn func(ctx context.Context, s *checkout.Session) error) {
	if req != nil {
		if err := decode(r, req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}
	sess, err := h.session(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := fn(ctx, sess); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (h *CheckoutHandler) selectAddress(w http.ResponseWriter, r *http.Request) {
	var req addressReq
	h.mutate(w, r, &req, func(ctx context.Context, s *checkout.Session) error {
		return s.SelectAddress(ctx, req.AddressID)
	})
}

func (h *CheckoutHandler) selectCourier(w http.ResponseWriter, r *http.Request) {
	var req courierReq
	h.mutate(w, r, &req, func(ctx context.Context, s *checkout.Session) error {
		return s.SelectCourier(ctx, req.Courier)
	})
}

func (h *CheckoutHandler) selectService(w http.ResponseWriter, r *http.Request) {
	var req serviceReq
	h.mutate(w, r, &req, func(_ context.Context, s *checkout.Session) error {
		return s.SelectService(req.Service)
	})
}

func (h *CheckoutHandler) applyVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherReq
	h.mutate(w, r, &req, func(ctx context.Context, s *checkout.Session) error {
		_, err := s.ApplyVoucher(ctx, req.Code)
		return err
	})
}

func (h *CheckoutHandler) usePoints(w http.ResponseWriter, r *http.Request) {
	var req pointsReq
	h.mutate(w, r, &req, func(_ context.Context, s *checkout.Session) error {
		_, err := s.UsePoints(req.Points)
		return err
	})
}

func (h *CheckoutHandler) submit(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// Submit bounds the payment call itself
	tok, err := sess.Submit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResp{Token: tok.Token, RedirectURL: tok.RedirectURL})
}

// outcome receives the payment widget's callback from the browser.
func (h *CheckoutHandler) outcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeReq
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	sess, err := h.session(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Checkout.ApplyOutcome(ctx, sess.TransactionUUID(), req.Outcome)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
