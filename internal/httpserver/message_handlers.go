package httpserver

import (
	"net/http"

	"securechat/internal/metrics"
	"securechat/internal/service"
)

type messageCreateRequest struct {
	Content string `json:"content"`
}

// @Summary      Send direct message
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        userID path string true "Receiver ID"
// @Param        input body messageCreateRequest true "Message"
// @Success      201  {object}  service.MessageRecord
// @Failure      404  {object}  errorBody
// @Router       /messages/{userID} [post]
func handleSendMessage(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		receiverID, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req messageCreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		rec, err := msgSvc.Send(r.Context(), CurrentUser(r).ID, receiverID, req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		metrics.DirectMessagesSent.Inc()
		writeJSON(w, http.StatusCreated, rec)
	}
}

// @Summary      Direct message history
// @Description  Messages between the caller and userID, oldest first
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        userID path string true "Peer ID"
// @Success      200  {array}  service.MessageRecord
// @Router       /messages/{userID} [get]
func handleHistory(msgSvc *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peerID, err := userIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		history, err := msgSvc.History(r.Context(), CurrentUser(r).ID, peerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}
