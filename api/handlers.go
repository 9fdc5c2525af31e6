package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xraph/tally"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/report"
	"github.com/xraph/tally/store"
)

type nameRequest struct {
	Name string `json:"name"`
}

type stockRequest struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func pathID(c *gin.Context, prefix id.Prefix) (id.ID, error) {
	parsed, err := id.ParseWithPrefix(c.Param("id"), prefix)
	if err != nil {
		return id.Nil, tally.ValidationError{Field: "id", Message: err.Error()}
	}
	return parsed, nil
}

// ──────────────────────────────────────────────────
// Directory
// ──────────────────────────────────────────────────

func (h *Handler) addClient(c *gin.Context) {
	var req nameRequest
	if err := decode(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	created, err := h.engine.AddClient(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// deleteClient removes the client record only. With ?purge=true its
// invoices are deleted first, reversing their stock effects.
func (h *Handler) deleteClient(c *gin.Context) {
	clientID, err := pathID(c, id.PrefixClient)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("purge") == "true" {
		err = h.engine.PurgeClient(c.Request.Context(), clientID)
	} else {
		err = h.engine.DeleteClient(c.Request.Context(), clientID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addSupplier(c *gin.Context) {
	var req nameRequest
	if err := decode(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	created, err := h.engine.AddSupplier(c.Request.Context(), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) deleteSupplier(c *gin.Context) {
	supplierID, err := pathID(c, id.PrefixSupplier)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.Query("purge") == "true" {
		err = h.engine.PurgeSupplier(c.Request.Context(), supplierID)
	} else {
		err = h.engine.DeleteSupplier(c.Request.Context(), supplierID)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addStockProduct(c *gin.Context) {
	var req stockRequest
	if err := decode(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	created, err := h.engine.AddStockProduct(c.Request.Context(), req.Name, req.UnitPrice)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) deleteStockProduct(c *gin.Context) {
	productID, err := pathID(c, id.PrefixStockProduct)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.engine.DeleteStockProduct(c.Request.Context(), productID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

// closeClientInvoice closes a draft. Items with a zero unit price take the
// catalog price of the matching stock entry.
func (h *Handler) closeClientInvoice(c *gin.Context) {
	var draft invoice.ClientDraft
	if err := decode(c, &draft); err != nil {
		h.fail(c, err)
		return
	}
	draft.Items = invoice.PrefillPrices(draft.Items, h.mirror.Catalog())

	inv, err := h.engine.CloseClientInvoice(c.Request.Context(), draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) deleteClientInvoice(c *gin.Context) {
	invID, err := pathID(c, id.PrefixClientInvoice)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.engine.DeleteClientInvoice(c.Request.Context(), invID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) closeSupplierInvoice(c *gin.Context) {
	var draft invoice.SupplierDraft
	if err := decode(c, &draft); err != nil {
		h.fail(c, err)
		return
	}

	inv, err := h.engine.CloseSupplierInvoice(c.Request.Context(), draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *Handler) deleteSupplierInvoice(c *gin.Context) {
	invID, err := pathID(c, id.PrefixSupplierInvoice)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.engine.DeleteSupplierInvoice(c.Request.Context(), invID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) peekInvoiceNumber(c *gin.Context) {
	n, err := h.engine.PeekInvoiceNumber(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_number": n})
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

func (h *Handler) snapshot(c *gin.Context) {
	switch collection := c.Param("collection"); collection {
	case store.CollectionClients:
		c.JSON(http.StatusOK, h.mirror.Clients())
	case store.CollectionSuppliers:
		c.JSON(http.StatusOK, h.mirror.Suppliers())
	case store.CollectionStock:
		c.JSON(http.StatusOK, h.mirror.Stock())
	case store.CollectionClientInvoices:
		c.JSON(http.StatusOK, h.mirror.ClientInvoices())
	case store.CollectionSupplierInvoices:
		c.JSON(http.StatusOK, h.mirror.SupplierInvoices())
	default:
		h.fail(c, fmt.Errorf("%w: collection %q", tally.ErrNotFound, collection))
	}
}

func (h *Handler) series(c *gin.Context) {
	period, err := report.ParsePeriod(c.Query("period"))
	if err != nil {
		h.fail(c, tally.ValidationError{Field: "period", Message: err.Error()})
		return
	}

	buckets, err := report.Series(period, h.now(),
		h.mirror.ClientInvoices().Records,
		h.mirror.SupplierInvoices().Records,
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period": period, "buckets": buckets})
}

func (h *Handler) totals(c *gin.Context) {
	s := report.Totals(
		h.mirror.Clients().Records,
		h.mirror.ClientInvoices().Records,
		h.mirror.SupplierInvoices().Records,
	)
	c.JSON(http.StatusOK, gin.H{
		"sales":          s.Sales,
		"purchases":      s.Purchases,
		"margin":         s.Margin,
		"margin_percent": s.MarginPercent(),
		"debt":           s.Debt,
	})
}

func (h *Handler) auditBalances(c *gin.Context) {
	drifts, err := h.engine.AuditBalances(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if drifts == nil {
		drifts = []tally.BalanceDrift{}
	}
	c.JSON(http.StatusOK, gin.H{"drifts": drifts})
}

func (h *Handler) repairBalance(c *gin.Context) {
	clientID, err := pathID(c, id.PrefixClient)
	if err != nil {
		h.fail(c, err)
		return
	}
	balance, err := h.engine.RepairBalance(c.Request.Context(), clientID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_id": clientID, "current_balance": balance})
}

func (h *Handler) health(c *gin.Context) {
	if err := h.engine.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: err.Error(), RequestID: c.GetString(requestIDKey)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
