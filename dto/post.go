package dto

import "time"

// ==================== POST REQUEST DTOs ====================

type CreatePostRequest struct {
	Title     string   `json:"title" validate:"required,min=3,max=200" example:"My first post"`
	Content   string   `json:"content" validate:"required,min=1" example:"Hello world"`
	Tags      []string `json:"tags,omitempty" validate:"omitempty,max=10,dive,min=1,max=30"`
	Published *bool    `json:"published,omitempty" example:"true"`
}

func (r CreatePostRequest) Validate() error {
	return GetValidator().Struct(r)
}

type UpdatePostRequest struct {
	Title     string   `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Content   string   `json:"content,omitempty" validate:"omitempty,min=1"`
	Tags      []string `json:"tags,omitempty" validate:"omitempty,max=10,dive,min=1,max=30"`
	Published *bool    `json:"published,omitempty"`
}

func (r UpdatePostRequest) Validate() error {
	return GetValidator().Struct(r)
}

type ListPostsRequest struct {
	Page   int    `query:"page" validate:"omitempty,min=1" example:"1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100" example:"20"`
	Search string `query:"search" validate:"omitempty,max=100" example:"golang"`
	Tag    string `query:"tag" validate:"omitempty,max=30" example:"tutorial"`
	Author string `query:"author" validate:"omitempty,max=64"`
	Sort   string `query:"sort" validate:"omitempty,oneof=newest oldest views" example:"newest"`
}

func (r ListPostsRequest) Validate() error {
	return GetValidator().Struct(r)
}

// ==================== POST RESPONSE DTOs ====================

type PostResponse struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty" example:"johndoe"`
	Title      string    `json:"title" example:"My first post"`
	Slug       string    `json:"slug" example:"my-first-post"`
	Content    string    `json:"content,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Published  bool      `json:"published" example:"true"`
	ViewCount  int64     `json:"view_count" example:"42"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ViewMeta reports the outcome of the view pipeline for a single request.
type ViewMeta struct {
	ViewCounted        bool `json:"view_counted" example:"true"`
	SuspiciousActivity bool `json:"suspicious_activity" example:"false"`
}

type PostDetailResponse struct {
	Post PostResponse `json:"post"`
	Meta ViewMeta     `json:"meta"`
}

type PaginationResponse struct {
	Page       int   `json:"page" example:"1"`
	Limit      int   `json:"limit" example:"20"`
	Total      int64 `json:"total" example:"100"`
	TotalPages int   `json:"total_pages" example:"5"`
	HasNext    bool  `json:"has_next" example:"true"`
	HasPrev    bool  `json:"has_prev" example:"false"`
}

type PostListResponse struct {
	Posts      []PostResponse     `json:"posts"`
	Pagination PaginationResponse `json:"pagination"`
}
