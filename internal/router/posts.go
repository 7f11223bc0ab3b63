package router

import (
	"context"
	"slices"
	"sort"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
	"github.com/skorotkiewicz/gnunet-social/internal/multiplexer"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
	"github.com/skorotkiewicz/gnunet-social/internal/visibility"
)

func (r *Router) handleCreatePost(ctx context.Context, peer string, req *protocol.CreatePostRequest) protocol.Response {
	vis := req.Visibility
	if vis == "" {
		vis = models.VisibilityPublic
	}
	if !vis.Valid() {
		return protocol.NewError(protocol.CodeBadRequest, "invalid visibility")
	}

	post := models.Post{
		ID:          r.newID(),
		AuthorID:    peer,
		Content:     req.Content,
		MediaHashes: nonNil(slices.Clone(req.MediaHashes)),
		ReplyTo:     req.ReplyTo,
		RepostOf:    req.RepostOf,
		Visibility:  vis,
		CreatedAt:   r.now(),
		Likes:       []string{},
	}
	r.graph.AddPost(post)

	r.publish(ctx, &protocol.NewPostEvent{Post: post.Clone()}, multiplexer.PortSocial, &protocol.PostRelay{
		PostID:  post.ID,
		Author:  post.AuthorID,
		Content: post.Content,
	}, postAudience(post))
	return &protocol.PostResponse{Post: &post}
}

// postAudience follows visibility.CanView: public posts go to every linked
// peer, anything else only to the author's own channels.
func postAudience(post models.Post) audience {
	if post.Visibility == models.VisibilityPublic {
		return everyone()
	}
	return only(post.AuthorID)
}

// handleGetFeed filters the whole collection before truncating so a page
// is never short while visible posts remain. The viewer is always the
// session's peer; the request's peer_id is not trusted.
func (r *Router) handleGetFeed(peer string, req *protocol.GetFeedRequest) protocol.Response {
	limit := limitOr(req.Limit, DefaultFeedLimit)

	all := r.graph.ListPosts()
	visible := make([]models.Post, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		post := all[i]
		if !visibility.CanView(peer, post) {
			continue
		}
		if req.Before != nil && !post.CreatedAt.Before(*req.Before) {
			continue
		}
		visible = append(visible, post)
	}

	// Newest first; later insertion wins ties because the scan above ran
	// backwards.
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})

	if len(visible) > limit {
		visible = visible[:limit]
	}
	return &protocol.FeedResponse{Posts: visible}
}

func (r *Router) handleGetPost(peer string, req *protocol.GetPostRequest) protocol.Response {
	post, err := r.graph.GetPost(req.PostID)
	if err != nil {
		return storeError(err, "Post")
	}
	if !visibility.CanView(peer, post) {
		return notFound("Post")
	}
	return &protocol.PostResponse{Post: &post}
}

func (r *Router) handleLikePost(peer string, req *protocol.LikePostRequest) protocol.Response {
	current, err := r.graph.GetPost(req.PostID)
	if err != nil {
		return storeError(err, "Post")
	}
	if !visibility.CanView(peer, current) {
		return notFound("Post")
	}

	post, err := r.graph.ToggleLike(req.PostID, peer)
	if err != nil {
		return storeError(err, "Post")
	}
	return &protocol.PostResponse{Post: &post}
}
