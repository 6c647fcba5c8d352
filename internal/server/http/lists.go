package httpserver

import (
	"net/http"

	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/service"
)

type listRequest struct {
	Name  string          `json:"name" validate:"required,max=120"`
	Scope model.ListScope `json:"scope" validate:"omitempty,oneof=shared personal"`
}

type itemRequest struct {
	Name     *string      `json:"name" validate:"omitempty,max=200"`
	Amount   *model.Fixed `json:"amount" validate:"omitempty,gt=0"`
	Price    *model.Fixed `json:"price" validate:"omitempty,gte=0"`
	Category *string      `json:"category" validate:"omitempty,max=60"`
}

func (req itemRequest) input() service.ItemInput {
	return service.ItemInput{
		Name:     cleanPtr(req.Name),
		Amount:   req.Amount,
		Price:    req.Price,
		Category: cleanPtr(req.Category),
	}
}

type purchaseRequest struct {
	Purchased *bool `json:"purchased"`
}

func (h *Handler) listLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.svc.Lists.ListLists(r.Context(), userID(r))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(lists))
}

func (h *Handler) createList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	l, err := h.svc.Lists.CreateList(r.Context(), userID(r), clean(req.Name), req.Scope)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

func (h *Handler) getList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	l, err := h.svc.Lists.GetList(r.Context(), userID(r), id)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *Handler) updateList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req renameRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	l, err := h.svc.Lists.UpdateList(r.Context(), userID(r), id, clean(req.Name))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *Handler) deleteList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Lists.DeleteList(r.Context(), userID(r), id); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

func (h *Handler) pendingItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	page, err := h.svc.Lists.PendingItems(r.Context(), userID(r), id, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	page.Items = nonNil(page.Items)
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	p, err := queryPeriod(r)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	page, err := h.svc.Lists.History(r.Context(), userID(r), id, p, limit, r.URL.Query().Get("cursor"))
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	page.Items = nonNil(page.Items)
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req itemRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	it, err := h.svc.Lists.AddItem(r.Context(), userID(r), id, req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, it)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req itemRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	it, err := h.svc.Lists.UpdateItem(r.Context(), userID(r), listID, itemID, req.input())
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, it)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	if err := h.svc.Lists.DeleteItem(r.Context(), userID(r), listID, itemID); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondNoContent(w)
}

// purchaseItem marks an item purchased. An explicit {"purchased": false}
// reverts the purchase.
func (h *Handler) purchaseItem(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "id")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	var req purchaseRequest
	if err := decodeOptional(w, r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}
	purchased := req.Purchased == nil || *req.Purchased
	it, err := h.svc.Lists.SetPurchased(r.Context(), userID(r), listID, itemID, purchased)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, it)
}
