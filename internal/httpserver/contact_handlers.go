package httpserver

import (
	"net/http"

	"securechat/internal/service"
)

type addContactRequest struct {
	Username string `json:"username"`
}

// @Summary      List contacts
// @Tags         contacts
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   service.ContactRecord
// @Router       /contacts [get]
func handleListContacts(contactSvc *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		edges, err := contactSvc.ListEdges(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, edges)
	}
}

// @Summary      Add contact
// @Tags         contacts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body addContactRequest true "Contact"
// @Success      201  {object}  service.ContactRecord
// @Failure      404  {object}  errorBody
// @Failure      409  {object}  errorBody
// @Router       /contacts [post]
func handleAddContact(contactSvc *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addContactRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := contactSvc.AddEdge(r.Context(), CurrentUser(r).ID, req.Username)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, service.ContactRecord{Username: c.TargetUsername, UserID: c.TargetID})
	}
}

// @Summary      Remove contact
// @Tags         contacts
// @Security     BearerAuth
// @Param        userID path string true "Contact user ID"
// @Success      204
// @Failure      404  {object}  errorBody
// @Router       /contacts/{userID} [delete]
func handleRemoveContact(contactSvc *service.ContactService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		targetID, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := contactSvc.RemoveEdge(r.Context(), CurrentUser(r).ID, targetID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
