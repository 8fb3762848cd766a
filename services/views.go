package services

import (
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/model"
	"github.com/fableink/fable_api/services/repositories"
)

// viewCounter persists a single view increment.
type viewCounter interface {
	IncrementViewCount(postID string) error
}

// ViewService runs the anti-spam pipeline for post reads. Order matters:
// author self-views exit before any tracking state is touched, the guard
// verdict is authoritative for suspicious traffic, and only clean traffic
// reaches the cooldown tracker.
type ViewService struct {
	context.DefaultService

	tracker *ViewTracker
	guard   *ViewGuard
	counter viewCounter
}

const VIEW_SVC = "view_svc"

func (svc ViewService) Id() string {
	return VIEW_SVC
}

func (svc *ViewService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *ViewService) Start() error {
	svc.tracker = svc.Service(VIEW_TRACKER_SVC).(*ViewTrackerService).tracker
	svc.guard = svc.Service(VIEW_GUARD_SVC).(*ViewGuardService).guard

	sqlSvc := svc.Service(SQL_SVC).(*SqlService)
	svc.counter = repositories.NewPostRepository(sqlSvc.Db())
	return nil
}

// Process classifies one view of post and increments its counter when the
// view is genuine. Persistence failures are logged and swallowed; a read
// never fails because a counter write did.
func (svc *ViewService) Process(post *model.Post, viewerIP, viewerUserID, userAgent, acceptLanguage string) dto.ViewMeta {
	now := time.Now()
	selfView := viewerUserID != "" && viewerUserID == post.AuthorID
	meta := svc.classify(post, viewerIP, viewerUserID, userAgent, acceptLanguage, now)

	if meta.SuspiciousActivity {
		suspiciousViewsTotal.Inc()
	}

	if !meta.ViewCounted {
		if !selfView {
			viewsBlockedTotal.Inc()
		}
		return meta
	}

	if err := svc.counter.IncrementViewCount(post.ID); err != nil {
		log.WithError(err).WithField("post_id", post.ID).Error("Failed to persist view count increment")
	} else {
		post.ViewCount++
	}
	viewsCountedTotal.Inc()

	return meta
}

func (svc *ViewService) classify(post *model.Post, viewerIP, viewerUserID, userAgent, acceptLanguage string, now time.Time) dto.ViewMeta {
	// Authors reading their own post leave no tracking state behind.
	if viewerUserID != "" && viewerUserID == post.AuthorID {
		return dto.ViewMeta{}
	}

	suspicious, guardAllows := svc.guard.ValidateView(viewerIP, userAgent, acceptLanguage, post.ID, now)
	if suspicious {
		// Guard verdict is authoritative; the cooldown tracker is not
		// consulted and not updated for suspicious traffic.
		return dto.ViewMeta{ViewCounted: guardAllows, SuspiciousActivity: true}
	}

	counted := svc.tracker.ShouldCountView(viewerIP, viewerUserID, post.ID, now)
	return dto.ViewMeta{ViewCounted: counted}
}
