package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"securechat/internal/domain"
	"securechat/internal/metrics"
	"securechat/internal/service"
)

type groupCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type addMembersRequest struct {
	UserIDs []string `json:"user_ids"`
}

type memberResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	JoinedAt string `json:"joined_at"`
}

func groupIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "groupID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid group id", domain.ErrInvalidInput)
	}
	return id, nil
}

// @Summary      List my groups
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  service.GroupRecord
// @Router       /groups [get]
func handleListGroups(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := groupSvc.ListGroupsForUser(r.Context(), CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

// @Summary      Create group
// @Description  Creates a group with the caller as its first member
// @Tags         groups
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body groupCreateRequest true "Group"
// @Success      201  {object}  domain.Group
// @Failure      409  {object}  errorBody
// @Router       /groups [post]
func handleCreateGroup(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req groupCreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		g, err := groupSvc.CreateGroup(r.Context(), service.GroupCreateInput{
			Name:        req.Name,
			Description: req.Description,
			CreatorID:   CurrentUser(r).ID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

// @Summary      List group members
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Param        groupID path int true "Group ID"
// @Success      200  {array}  memberResponse
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /groups/{groupID}/members [get]
func handleListMembers(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := groupIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := groupSvc.CheckMember(r.Context(), groupID, CurrentUser(r).ID); err != nil {
			writeError(w, r, err)
			return
		}
		members, err := groupSvc.ListMembers(r.Context(), groupID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		res := make([]memberResponse, 0, len(members))
		for _, m := range members {
			res = append(res, memberResponse{
				UserID:   m.UserID,
				Username: m.Username,
				JoinedAt: m.JoinedAt.UTC().Format(service.TimestampLayout),
			})
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// @Summary      Add group members
// @Description  Adds users to a group; the caller must already be a member
// @Tags         groups
// @Security     BearerAuth
// @Accept       json
// @Param        groupID path int true "Group ID"
// @Param        input body addMembersRequest true "Members"
// @Success      204
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /groups/{groupID}/members [post]
func handleAddMembers(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := groupIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req addMembersRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := groupSvc.CheckMember(r.Context(), groupID, CurrentUser(r).ID); err != nil {
			writeError(w, r, err)
			return
		}
		if err := groupSvc.AddMembers(r.Context(), groupID, req.UserIDs); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Group message history
// @Tags         groups
// @Security     BearerAuth
// @Produce      json
// @Param        groupID path int true "Group ID"
// @Success      200  {array}  service.GroupMessageRecord
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /groups/{groupID}/messages [get]
func handleGroupHistory(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := groupIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		history, err := groupSvc.GroupHistory(r.Context(), groupID, CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

// @Summary      Send group message
// @Tags         groups
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        groupID path int true "Group ID"
// @Param        input body messageCreateRequest true "Message"
// @Success      201  {object}  service.GroupMessageRecord
// @Failure      403  {object}  errorBody
// @Failure      404  {object}  errorBody
// @Router       /groups/{groupID}/messages [post]
func handleSendGroupMessage(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := groupIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req messageCreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		rec, err := groupSvc.SendGroupMessage(r.Context(), groupID, CurrentUser(r).ID, req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		metrics.GroupMessagesSent.Inc()
		writeJSON(w, http.StatusCreated, rec)
	}
}
