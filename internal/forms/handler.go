package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledgerdesk/internal/costing"
	"github.com/odyssey-erp/ledgerdesk/internal/ledger"
	"github.com/odyssey-erp/ledgerdesk/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

// Handler exposes the voucher and purchase forms over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers form routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/vouchers/{kind}", func(r chi.Router) {
		r.Post("/drafts", h.openVoucher)
		r.Post("/{id}/edit", h.editVoucher)
		r.Delete("/{id}", h.deleteVoucher)
		r.Route("/drafts/{draft}", func(r chi.Router) {
			r.Get("/", h.showVoucher)
			r.Patch("/", h.setVoucherHeader)
			r.Delete("/", h.discardVoucher)
			r.Post("/lines", h.addLine)
			r.Patch("/lines/{line}", h.updateLine)
			r.Delete("/lines/{line}", h.removeLine)
			r.Post("/submit", h.submitVoucher)
		})
	})
	r.Route("/purchases", func(r chi.Router) {
		r.Post("/drafts", h.openPurchase)
		r.Post("/{id}/edit", h.editPurchase)
		r.Route("/drafts/{draft}", func(r chi.Router) {
			r.Get("/", h.showPurchase)
			r.Patch("/", h.setPurchaseHeader)
			r.Delete("/", h.discardPurchase)
			r.Post("/items", h.addItem)
			r.Put("/items/{index}", h.updateItem)
			r.Delete("/items/{index}", h.removeItem)
			r.Post("/save", h.savePurchase)
			r.Post("/costing", h.beginCosting)
			r.Put("/costing/overheads", h.setOverheads)
			r.Post("/costing/save", h.saveCosting)
			r.Get("/costing/preview", h.previewCosting)
			r.Post("/costing/confirm", h.confirmCosting)
			r.Get("/costing/sheet.xlsx", h.costSheet)
			r.Post("/approve", h.approvePurchase)
			r.Post("/post", h.postPurchase)
			r.Post("/cancel", h.cancelPurchase)
		})
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownKind):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrForbidden),
		errors.Is(err, httpx.ErrUnauthorized), errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrConflict):
	default:
		h.logger.Error("form request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}

// withVoucher restores the draft, applies fn and stores the draft when fn succeeds.
// A nil payload responds with the draft view.
func (h *Handler) withVoucher(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, v *Voucher) (any, error)) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	kind, err := ledger.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.service.Voucher(r.Context(), *sess, kind, chi.URLParam(r, "draft"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payload, err := fn(r.Context(), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.SaveVoucher(r.Context(), v); err != nil {
		h.fail(w, r, err)
		return
	}
	if payload == nil {
		payload = ViewVoucher(v)
	}
	httpx.JSON(w, status, payload)
}

func (h *Handler) openVoucher(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	kind, err := ledger.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := h.service.OpenVoucher(r.Context(), *sess, kind)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ViewVoucher(v))
}

func (h *Handler) editVoucher(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	kind, err := ledger.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "invalid document id")
		return
	}
	v, err := h.service.EditVoucher(r.Context(), *sess, kind, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ViewVoucher(v))
}

func (h *Handler) deleteVoucher(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	kind, err := ledger.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "invalid document id")
		return
	}
	if err := h.service.DeleteVoucher(r.Context(), *sess, kind, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showVoucher(w http.ResponseWriter, r *http.Request) {
	h.withVoucher(w, r, http.StatusOK, func(context.Context, *Voucher) (any, error) {
		return nil, nil
	})
}

func (h *Handler) setVoucherHeader(w http.ResponseWriter, r *http.Request) {
	var header Header
	if !h.decode(w, r, &header) {
		return
	}
	h.withVoucher(w, r, http.StatusOK, func(_ context.Context, v *Voucher) (any, error) {
		v.SetHeader(header)
		return nil, nil
	})
}

func (h *Handler) discardVoucher(w http.ResponseWriter, r *http.Request) {
	kind, err := ledger.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := shared.RequireSession(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DiscardVoucher(r.Context(), kind, chi.URLParam(r, "draft")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	h.withVoucher(w, r, http.StatusCreated, func(_ context.Context, v *Voucher) (any, error) {
		v.AddLine()
		return nil, nil
	})
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var patch LinePatch
	if !h.decode(w, r, &patch) {
		return
	}
	h.withVoucher(w, r, http.StatusOK, func(_ context.Context, v *Voucher) (any, error) {
		_, err := v.UpdateLine(chi.URLParam(r, "line"), patch)
		return nil, err
	})
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	h.withVoucher(w, r, http.StatusOK, func(_ context.Context, v *Voucher) (any, error) {
		return nil, v.RemoveLine(chi.URLParam(r, "line"))
	})
}

func (h *Handler) submitVoucher(w http.ResponseWriter, r *http.Request) {
	h.withVoucher(w, r, http.StatusOK, func(ctx context.Context, v *Voucher) (any, error) {
		res, err := h.service.SubmitVoucher(ctx, v)
		if err != nil {
			return nil, err
		}
		return struct {
			SubmitResult
			Next VoucherView `json:"next"`
		}{res, ViewVoucher(v)}, nil
	})
}

// withPurchase restores the purchase draft, applies fn and stores the draft when fn succeeds.
func (h *Handler) withPurchase(w http.ResponseWriter, r *http.Request, status int, fn func(ctx context.Context, p *Purchase) (any, error)) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.Purchase(r.Context(), *sess, chi.URLParam(r, "draft"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payload, err := fn(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.SavePurchase(r.Context(), p); err != nil {
		h.fail(w, r, err)
		return
	}
	if payload == nil {
		payload = ViewPurchase(p)
	}
	httpx.JSON(w, status, payload)
}

func (h *Handler) openPurchase(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.OpenPurchase(r.Context(), *sess)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ViewPurchase(p))
}

func (h *Handler) editPurchase(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "invalid purchase id")
		return
	}
	p, err := h.service.EditPurchase(r.Context(), *sess, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ViewPurchase(p))
}

func (h *Handler) showPurchase(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(context.Context, *Purchase) (any, error) {
		return nil, nil
	})
}

func (h *Handler) setPurchaseHeader(w http.ResponseWriter, r *http.Request) {
	var header PurchaseHeader
	if !h.decode(w, r, &header) {
		return
	}
	h.withPurchase(w, r, http.StatusOK, func(_ context.Context, p *Purchase) (any, error) {
		return nil, p.SetHeader(header)
	})
}

func (h *Handler) discardPurchase(w http.ResponseWriter, r *http.Request) {
	if _, err := shared.RequireSession(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.DiscardPurchase(r.Context(), chi.URLParam(r, "draft")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if !h.decode(w, r, &in) {
		return
	}
	h.withPurchase(w, r, http.StatusCreated, func(_ context.Context, p *Purchase) (any, error) {
		_, err := p.AddItem(in)
		return nil, err
	})
}

func itemIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("item index: %w", shared.ErrNotFound)
	}
	return idx, nil
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if !h.decode(w, r, &in) {
		return
	}
	h.withPurchase(w, r, http.StatusOK, func(_ context.Context, p *Purchase) (any, error) {
		idx, err := itemIndex(r)
		if err != nil {
			return nil, err
		}
		_, err = p.UpdateItem(idx, in)
		return nil, err
	})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(_ context.Context, p *Purchase) (any, error) {
		idx, err := itemIndex(r)
		if err != nil {
			return nil, err
		}
		return nil, p.RemoveItem(idx)
	})
}

func (h *Handler) savePurchase(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(ctx context.Context, p *Purchase) (any, error) {
		_, err := p.Save(ctx)
		h.service.RecordPurchase("save", err)
		return nil, err
	})
}

func (h *Handler) beginCosting(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(_ context.Context, p *Purchase) (any, error) {
		return nil, p.BeginCosting()
	})
}

func (h *Handler) setOverheads(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows []costing.OverheadRow `json:"rows"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	h.withPurchase(w, r, http.StatusOK, func(_ context.Context, p *Purchase) (any, error) {
		return nil, p.SetOverheads(body.Rows)
	})
}

func (h *Handler) saveCosting(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(ctx context.Context, p *Purchase) (any, error) {
		return nil, p.SaveCosting(ctx)
	})
}

func (h *Handler) previewCosting(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(_ context.Context, p *Purchase) (any, error) {
		return p.Preview(), nil
	})
}

func (h *Handler) confirmCosting(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(ctx context.Context, p *Purchase) (any, error) {
		preview, err := p.ConfirmCosting(ctx)
		h.service.RecordPurchase("confirm", err)
		if err != nil {
			return nil, err
		}
		return preview, nil
	})
}

func (h *Handler) costSheet(w http.ResponseWriter, r *http.Request) {
	sess, err := shared.RequireSession(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.service.Purchase(r.Context(), *sess, chi.URLParam(r, "draft"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := p.CostSheet()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	name := "cost-sheet.xlsx"
	if trNo := p.State().Purchase.TrNo; trNo != "" {
		name = "cost-sheet-" + trNo + ".xlsx"
	}
	httpx.Attachment(w, httpx.ContentTypeXLSX, name, body)
}

func (h *Handler) approvePurchase(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(_ context.Context, p *Purchase) (any, error) {
		return nil, p.Approve()
	})
}

func (h *Handler) postPurchase(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(ctx context.Context, p *Purchase) (any, error) {
		_, err := p.Post(ctx)
		h.service.RecordPurchase("post", err)
		return nil, err
	})
}

func (h *Handler) cancelPurchase(w http.ResponseWriter, r *http.Request) {
	h.withPurchase(w, r, http.StatusOK, func(ctx context.Context, p *Purchase) (any, error) {
		return nil, p.Cancel(ctx)
	})
}
