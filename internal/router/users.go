package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/skorotkiewicz/gnunet-social/internal/logging"
	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/names"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
	"github.com/skorotkiewicz/gnunet-social/internal/store"
)

func (r *Router) handleCreateUser(ctx context.Context, peer string, req *protocol.CreateUserRequest) protocol.Response {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return protocol.NewError(protocol.CodeBadRequest, "username is required")
	}

	now := r.now()
	user := models.User{
		ID:        peer,
		Username:  username,
		Bio:       req.Bio,
		Zone:      peer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}

	if err := r.graph.CreateUser(user); err != nil {
		switch {
		case errors.Is(err, store.ErrExists):
			return protocol.NewError(protocol.CodeConflict, "User already exists")
		case errors.Is(err, store.ErrConflict):
			return protocol.NewError(protocol.CodeConflict, "Username already taken")
		}
		return storeError(err, "User")
	}

	if r.directory != nil {
		rec := names.IdentityRecord(peer, username)
		if err := r.directory.StoreLocal(ctx, username, rec); err != nil {
			logging.FromContext(ctx).Warn("publish identity record failed",
				slog.String("username", username),
				slog.Any("error", err),
			)
		}
	}

	return &protocol.UserResponse{User: &user}
}

func (r *Router) handleUpdateUser(peer string, req *protocol.UpdateUserRequest) protocol.Response {
	updated, err := r.graph.UpdateUser(peer, func(u *models.User) {
		if req.DisplayName != nil {
			u.DisplayName = *req.DisplayName
		}
		if req.Bio != nil {
			bio := *req.Bio
			u.Bio = &bio
		}
	})
	if err != nil {
		return storeError(err, "User")
	}
	return &protocol.UserResponse{User: &updated}
}

// handleGetUser looks the argument up as a peer identifier first and then,
// when a resolver is configured, as a published username.
func (r *Router) handleGetUser(ctx context.Context, req *protocol.GetUserRequest) protocol.Response {
	user, err := r.graph.GetUser(req.PeerID)
	if err == nil {
		return &protocol.UserResponse{User: &user}
	}
	if !errors.Is(err, store.ErrNotFound) || r.resolver == nil || r.directory == nil {
		return storeError(err, "User")
	}

	peer, err := names.ResolveIdentity(ctx, r.resolver, r.directory.LocalZone(), req.PeerID)
	if err != nil {
		if !errors.Is(err, names.ErrNotFound) {
			logging.FromContext(ctx).Warn("resolve username failed",
				slog.String("username", req.PeerID),
				slog.Any("error", err),
			)
		}
		return notFound("User")
	}

	user, err = r.graph.GetUser(peer)
	if err != nil {
		return storeError(err, "User")
	}
	return &protocol.UserResponse{User: &user}
}

func (r *Router) handleSearchUsers(req *protocol.SearchUsersRequest) protocol.Response {
	users := r.graph.SearchUsers(req.Query, limitOr(req.Limit, DefaultSearchLimit))
	return &protocol.UserResponse{Users: users}
}
