package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/dashhub/internal/model"
	"github.com/hitoshi/dashhub/internal/security"
)

// EventLister は予定一覧取得のインターフェース。
// テスト時にモックに差し替え可能。
type EventLister interface {
	ListEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]Event, error)
}

// CredentialProvider は有効なGoogle認可情報を返すインターフェース。
type CredentialProvider interface {
	ValidCredential(ctx context.Context) *model.Credential
}

// Service は今日の予定を取得する。
type Service struct {
	lister    EventLister
	creds     CredentialProvider
	sanitizer *security.TextSanitizer
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(lister EventLister, creds CredentialProvider, sanitizer *security.TextSanitizer, logger *slog.Logger) *Service {
	return &Service{
		lister:    lister,
		creds:     creds,
		sanitizer: sanitizer,
		logger:    logger,
		now:       time.Now,
	}
}

// TodaysEvents はUTCで今日[00:00, 24:00)の予定を返す。
// 認可情報がない場合や取得に失敗した場合はFallbackEventsを返す。
func (s *Service) TodaysEvents(ctx context.Context) []model.CalendarEvent {
	now := s.now()

	cred := s.creds.ValidCredential(ctx)
	if cred == nil {
		s.logger.Info("Google認可情報がないため固定の予定を返します")
		return FallbackEvents(now)
	}

	start := startOfUTCDay(now)
	items, err := s.lister.ListEvents(ctx, cred.AccessToken, start, start.Add(24*time.Hour))
	if err != nil {
		s.logger.Error("カレンダーの予定取得に失敗したため固定の予定を返します",
			slog.String("error", err.Error()),
		)
		return FallbackEvents(now)
	}

	events := make([]model.CalendarEvent, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		ev, err := toEvent(item, s.sanitizer)
		if err != nil {
			s.logger.Warn("予定の変換に失敗したためスキップします",
				slog.String("summary", item.Summary),
				slog.String("error", err.Error()),
			)
			continue
		}
		events = append(events, ev)
	}
	return events
}

func startOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
