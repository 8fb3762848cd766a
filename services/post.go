package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/model"
	"github.com/fableink/fable_api/services/repositories"
	"github.com/fableink/fable_api/shared"
)

// PostService owns post CRUD, slug generation and the list query with
// pagination, search and filtering.
type PostService struct {
	context.DefaultService

	sqlSvc *SqlService

	postRepo *repositories.PostRepository
	userRepo *repositories.UserRepository
}

const POST_SVC = "post_svc"

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (svc PostService) Id() string {
	return POST_SVC
}

func (svc *PostService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *PostService) Start() error {
	svc.sqlSvc = svc.Service(SQL_SVC).(*SqlService)
	svc.postRepo = repositories.NewPostRepository(svc.sqlSvc.Db())
	svc.userRepo = repositories.NewUserRepository(svc.sqlSvc.Db())
	return nil
}

// ==================== CRUD ====================

func (svc *PostService) CreatePost(authorID string, req dto.CreatePostRequest) (*dto.PostResponse, error) {
	slug, err := svc.uniqueSlug(req.Title)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to generate slug")
	}

	published := true
	if req.Published != nil {
		published = *req.Published
	}

	post := &model.Post{
		ID:        uuid.Must(uuid.NewV7()).String(),
		AuthorID:  authorID,
		Title:     req.Title,
		Slug:      slug,
		Content:   req.Content,
		Tags:      normalizeTags(req.Tags),
		Published: published,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := svc.postRepo.CreatePost(post); err != nil {
		return nil, shared.NewInternalError(svc.sqlSvc.HandleError(err), "Failed to create post")
	}

	log.WithFields(log.Fields{"post_id": post.ID, "author_id": authorID}).Info("Post created")
	return svc.toResponse(post, true), nil
}

// GetPost loads a post enforcing visibility: unpublished posts are only
// visible to their author.
func (svc *PostService) GetPost(postID, viewerID string) (*model.Post, error) {
	post, err := svc.postRepo.GetPost(postID)
	if err != nil {
		return nil, shared.NewNotFoundError(err, "Post not found")
	}

	if !post.Published && post.AuthorID != viewerID {
		return nil, shared.NewNotFoundError(nil, "Post not found")
	}

	return post, nil
}

func (svc *PostService) UpdatePost(postID, userID string, req dto.UpdatePostRequest) (*dto.PostResponse, error) {
	post, err := svc.postRepo.GetPost(postID)
	if err != nil {
		return nil, shared.NewNotFoundError(err, "Post not found")
	}

	if post.AuthorID != userID {
		return nil, shared.NewForbiddenError(nil, "You can only edit your own posts")
	}

	if req.Title != "" && req.Title != post.Title {
		post.Title = req.Title
		slug, err := svc.uniqueSlug(req.Title)
		if err != nil {
			return nil, shared.NewInternalError(err, "Failed to generate slug")
		}
		post.Slug = slug
	}
	if req.Content != "" {
		post.Content = req.Content
	}
	if req.Tags != nil {
		post.Tags = normalizeTags(req.Tags)
	}
	if req.Published != nil {
		post.Published = *req.Published
	}

	if err := svc.postRepo.UpdatePost(post); err != nil {
		return nil, shared.NewInternalError(svc.sqlSvc.HandleError(err), "Failed to update post")
	}

	return svc.toResponse(post, true), nil
}

func (svc *PostService) DeletePost(postID, userID, userRole string) error {
	post, err := svc.postRepo.GetPost(postID)
	if err != nil {
		return shared.NewNotFoundError(err, "Post not found")
	}

	if post.AuthorID != userID && userRole != shared.RoleAdmin {
		return shared.NewForbiddenError(nil, "You can only delete your own posts")
	}

	if err := svc.postRepo.DeletePost(postID); err != nil {
		return shared.NewInternalError(err, "Failed to delete post")
	}

	log.WithFields(log.Fields{"post_id": postID, "deleted_by": userID}).Info("Post deleted")
	return nil
}

func (svc *PostService) SetImageURL(postID, userID, imageURL string) error {
	post, err := svc.postRepo.GetPost(postID)
	if err != nil {
		return shared.NewNotFoundError(err, "Post not found")
	}

	if post.AuthorID != userID {
		return shared.NewForbiddenError(nil, "You can only modify your own posts")
	}

	if err := svc.postRepo.UpdateImageURL(postID, imageURL); err != nil {
		return shared.NewInternalError(err, "Failed to update post image")
	}
	return nil
}

// ==================== LISTING ====================

func (svc *PostService) ListPosts(req dto.ListPostsRequest, viewerID string) (*dto.PostListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = defaultPageLimit
	}
	if req.Limit > maxPageLimit {
		req.Limit = maxPageLimit
	}

	posts, total, err := svc.postRepo.ListPosts(req, viewerID)
	if err != nil {
		return nil, shared.NewInternalError(svc.sqlSvc.HandleError(err), "Failed to list posts")
	}

	responses := make([]dto.PostResponse, 0, len(posts))
	for i := range posts {
		// List view omits the full content body
		resp := svc.toResponse(&posts[i], false)
		responses = append(responses, *resp)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))

	return &dto.PostListResponse{
		Posts: responses,
		Pagination: dto.PaginationResponse{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}, nil
}

// ==================== HELPERS ====================

func (svc *PostService) toResponse(post *model.Post, includeContent bool) *dto.PostResponse {
	resp := &dto.PostResponse{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Title:     post.Title,
		Slug:      post.Slug,
		Tags:      splitTags(post.Tags),
		ImageURL:  post.ImageURL,
		Published: post.Published,
		ViewCount: post.ViewCount,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}

	if includeContent {
		resp.Content = post.Content
	}

	if author, err := svc.userRepo.GetUser(post.AuthorID); err == nil {
		resp.AuthorName = author.Username
	}

	return resp
}

// ToResponse builds the public representation of post with full content.
func (svc *PostService) ToResponse(post *model.Post) *dto.PostResponse {
	return svc.toResponse(post, true)
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = strings.Trim(slug[:80], "-")
	}
	if slug == "" {
		slug = "post"
	}
	return slug
}

// uniqueSlug appends a short random suffix when the natural slug is taken.
func (svc *PostService) uniqueSlug(title string) (string, error) {
	slug := slugify(title)

	exists, err := svc.postRepo.SlugExists(slug)
	if err != nil {
		return "", err
	}
	if !exists {
		return slug, nil
	}

	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%s", slug, suffix), nil
}

func normalizeTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	seen := make(map[string]struct{})
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		cleaned = append(cleaned, tag)
	}
	return strings.Join(cleaned, ",")
}

func splitTags(tags string) []string {
	if tags == "" {
		return nil
	}
	return strings.Split(tags, ",")
}
