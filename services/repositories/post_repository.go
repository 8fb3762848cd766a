package repositories

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/model"
	"github.com/fableink/fable_api/shared"
)

// PostRepository handles post-related database operations
type PostRepository struct {
	BaseRepository
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (ds *PostRepository) CreatePost(post *model.Post) error {
	return ds.db.Create(post).Error
}

func (ds *PostRepository) GetPost(postID string) (*model.Post, error) {
	var post model.Post
	if err := ds.db.Where("id = ?", postID).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (ds *PostRepository) GetPostBySlug(slug string) (*model.Post, error) {
	var post model.Post
	if err := ds.db.Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (ds *PostRepository) UpdatePost(post *model.Post) error {
	post.UpdatedAt = time.Now()
	return ds.db.Save(post).Error
}

func (ds *PostRepository) DeletePost(postID string) error {
	return ds.db.Where("id = ?", postID).Delete(&model.Post{}).Error
}

func (ds *PostRepository) SlugExists(slug string) (bool, error) {
	var count int64
	if err := ds.db.Model(&model.Post{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ds *PostRepository) CountByAuthor(authorID string) (int64, error) {
	var count int64
	err := ds.db.Model(&model.Post{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

// IncrementViewCount bumps the counter atomically in the database so
// concurrent views never lose updates.
func (ds *PostRepository) IncrementViewCount(postID string) error {
	return ds.db.Model(&model.Post{}).Where("id = ?", postID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
}

func (ds *PostRepository) UpdateImageURL(postID, imageURL string) error {
	return ds.db.Model(&model.Post{}).Where("id = ?", postID).Updates(map[string]interface{}{
		"image_url":  imageURL,
		"updated_at": time.Now(),
	}).Error
}

// ListPosts returns one page of published posts matching req, plus the
// total match count for pagination. viewerID widens visibility to the
// viewer's own unpublished posts.
func (ds *PostRepository) ListPosts(req dto.ListPostsRequest, viewerID string) ([]model.Post, int64, error) {
	query := ds.db.Model(&model.Post{})

	if viewerID != "" {
		query = query.Where("published = ? OR author_id = ?", true, viewerID)
	} else {
		query = query.Where("published = ?", true)
	}

	if req.Search != "" {
		pattern := "%" + strings.ToLower(req.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", pattern, pattern)
	}

	if req.Tag != "" {
		// Tags are stored lowercase comma separated; match whole tags only
		tag := strings.ToLower(req.Tag)
		query = query.Where(
			"tags = ? OR tags LIKE ? OR tags LIKE ? OR tags LIKE ?",
			tag, tag+",%", "%,"+tag, "%,"+tag+",%",
		)
	}

	if req.Author != "" {
		query = query.Where("author_id = ?", req.Author)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch req.Sort {
	case shared.SortOldest:
		query = query.Order("created_at ASC")
	case shared.SortViews:
		query = query.Order("view_count DESC").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}

	offset := (req.Page - 1) * req.Limit

	var posts []model.Post
	if err := query.Offset(offset).Limit(req.Limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}
