package store

import (
	"sync"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

type postTable struct {
	mu    sync.RWMutex
	byID  map[string]*models.Post
	order []string
}

// AddPost inserts or replaces a post. Replacing keeps the original
// insertion position.
func (s *Store) AddPost(post models.Post) {
	stored := post.Clone()

	s.posts.mu.Lock()
	defer s.posts.mu.Unlock()

	if _, exists := s.posts.byID[post.ID]; !exists {
		s.posts.order = append(s.posts.order, post.ID)
	}
	s.posts.byID[post.ID] = &stored
}

// GetPost returns the post with the given identifier.
func (s *Store) GetPost(id string) (models.Post, error) {
	s.posts.mu.RLock()
	defer s.posts.mu.RUnlock()

	post, ok := s.posts.byID[id]
	if !ok {
		return models.Post{}, ErrNotFound
	}
	return post.Clone(), nil
}

// GetPostsByAuthor returns every post by authorID in insertion order.
func (s *Store) GetPostsByAuthor(authorID string) []models.Post {
	s.posts.mu.RLock()
	defer s.posts.mu.RUnlock()

	out := make([]models.Post, 0)
	for _, id := range s.posts.order {
		if post := s.posts.byID[id]; post.AuthorID == authorID {
			out = append(out, post.Clone())
		}
	}
	return out
}

// ListPosts returns every post in insertion order.
func (s *Store) ListPosts() []models.Post {
	s.posts.mu.RLock()
	defer s.posts.mu.RUnlock()

	out := make([]models.Post, 0, len(s.posts.order))
	for _, id := range s.posts.order {
		out = append(out, s.posts.byID[id].Clone())
	}
	return out
}

// ToggleLike adds peerID to the post's like set, or removes it when already
// present, and returns the updated post.
func (s *Store) ToggleLike(postID, peerID string) (models.Post, error) {
	s.posts.mu.Lock()
	defer s.posts.mu.Unlock()

	post, ok := s.posts.byID[postID]
	if !ok {
		return models.Post{}, ErrNotFound
	}

	if post.LikedBy(peerID) {
		likes := make([]string, 0, len(post.Likes))
		for _, id := range post.Likes {
			if id != peerID {
				likes = append(likes, id)
			}
		}
		post.Likes = likes
	} else {
		post.Likes = append(post.Likes, peerID)
	}

	return post.Clone(), nil
}
