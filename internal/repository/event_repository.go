package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"occupancy-service/internal/domain/occupancy"
)

// ArchivedEvent is the persisted form of a crossing event. The live
// pipeline never reads it back; it feeds history and daily summaries.
type ArchivedEvent struct {
	ID         int64     `gorm:"primaryKey"`
	EventID    string    `gorm:"not null;uniqueIndex"`
	CameraID   string    `gorm:"not null"`
	TrackID    int       `gorm:"not null"`
	Direction  string    `gorm:"not null"`
	EventTime  time.Time `gorm:"not null"`
	Attributes datatypes.JSON
	CreatedAt  time.Time
}

func (ArchivedEvent) TableName() string {
	return "crossing_events"
}

// archiveQueueSize bounds the buffered write queue. A full queue drops
// the event with a warning rather than stalling a camera worker.
const archiveQueueSize = 256

// EventArchive persists crossing events asynchronously and serves
// aggregate history queries. Implements the worker's EventSink and the
// service's Summarizer.
type EventArchive struct {
	db    *gorm.DB
	queue chan ArchivedEvent
	log   zerolog.Logger
}

// NewEventArchive builds the archive around an open DB handle.
func NewEventArchive(db *gorm.DB, log zerolog.Logger) *EventArchive {
	return &EventArchive{
		db:    db,
		queue: make(chan ArchivedEvent, archiveQueueSize),
		log:   log,
	}
}

// Archive enqueues an event for persistence. Never blocks: the hot
// path must not wait on the database.
func (a *EventArchive) Archive(event occupancy.CrossingEvent, attrs occupancy.Attributes) {
	blob, err := json.Marshal(attrs)
	if err != nil {
		a.log.Error().Err(err).Str("event_id", event.ID).Msg("failed to marshal event attributes")
		blob = []byte("{}")
	}

	row := ArchivedEvent{
		EventID:    event.ID,
		CameraID:   event.CameraID,
		TrackID:    event.TrackID,
		Direction:  string(event.Direction),
		EventTime:  event.Timestamp,
		Attributes: datatypes.JSON(blob),
	}

	select {
	case a.queue <- row:
	default:
		a.log.Warn().Str("camera_id", event.CameraID).Msg("archive queue full, dropping event")
	}
}

// Run drains the write queue until ctx is cancelled. Intended to be
// launched once as a goroutine from main.
func (a *EventArchive) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-a.queue:
			if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
				a.log.Error().
					Err(err).
					Str("event_id", row.EventID).
					Str("camera_id", row.CameraID).
					Msg("failed to archive crossing event")
				continue
			}
			a.log.Debug().
				Str("event_id", row.EventID).
				Str("camera_id", row.CameraID).
				Str("direction", row.Direction).
				Msg("archived crossing event")
		}
	}
}

type dayRow struct {
	CameraID  string
	Direction string
	Hour      int
	Total     int64
}

// SummarizeDay aggregates per-camera in/out totals and per-hour entries
// for the calendar day containing the given time (server timezone).
func (a *EventArchive) SummarizeDay(ctx context.Context, day time.Time) (map[string]occupancy.CameraDaySummary, error) {
	year, month, d := day.Date()
	start := time.Date(year, month, d, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var rows []dayRow
	err := a.db.WithContext(ctx).
		Model(&ArchivedEvent{}).
		Select("camera_id, direction, EXTRACT(HOUR FROM event_time)::int AS hour, COUNT(*) AS total").
		Where("event_time >= ? AND event_time < ?", start, end).
		Group("camera_id, direction, hour").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]occupancy.CameraDaySummary)
	for _, r := range rows {
		cs, ok := out[r.CameraID]
		if !ok {
			cs = occupancy.CameraDaySummary{VisitsPerHour: map[int]int64{}}
		}
		if r.Direction == string(occupancy.DirectionIn) {
			cs.TotalInToday += r.Total
			cs.VisitsPerHour[r.Hour] += r.Total
		} else {
			cs.TotalOutToday += r.Total
		}
		out[r.CameraID] = cs
	}
	return out, nil
}

// FindEvents returns archived events filtered by camera and time range,
// newest first.
func (a *EventArchive) FindEvents(ctx context.Context, cameraID *string, from, to *time.Time, limit, offset int) ([]ArchivedEvent, error) {
	query := a.db.WithContext(ctx).Model(&ArchivedEvent{})

	if cameraID != nil {
		query = query.Where("camera_id = ?", *cameraID)
	}
	if from != nil {
		query = query.Where("event_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("event_time <= ?", *to)
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var events []ArchivedEvent
	err := query.Order("event_time DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, err
}
