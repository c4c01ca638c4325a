// Package journal persists raw protocol frames in both directions.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Frame is one journaled protocol message.
type Frame struct {
	Direction string
	Session   string
	MsgType   string
	SeqNum    int
	Raw       string
	At        time.Time
}

type frameModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Direction     string         `gorm:"column:direction;index"`
	Session       string         `gorm:"column:session"`
	MsgType       string         `gorm:"column:msg_type;index"`
	SeqNum        int            `gorm:"column:seq_num"`
	Raw           string         `gorm:"column:raw"`
	Fields        datatypes.JSON `gorm:"column:fields"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (frameModel) TableName() string { return "protocol_frames" }

// Store is the gorm-backed frame table.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&frameModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Append writes frames in one batch.
func (s *Store) Append(ctx context.Context, frames []Frame) error {
	if len(frames) == 0 {
		return nil
	}
	models := make([]frameModel, 0, len(frames))
	for _, f := range frames {
		at := f.At
		if at.IsZero() {
			at = time.Now()
		}
		models = append(models, frameModel{
			Direction:     f.Direction,
			Session:       f.Session,
			MsgType:       f.MsgType,
			SeqNum:        f.SeqNum,
			Raw:           f.Raw,
			Fields:        datatypes.JSON(fieldsJSON(f.Raw)),
			CreatedAtUnix: at.UnixMilli(),
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(models, 100).Error
}

// Query filters journaled frames.
type Query struct {
	MsgType   string
	Direction string
	Since     time.Time
	Limit     int
}

func (s *Store) Load(ctx context.Context, q Query) ([]Frame, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	query := s.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if q.MsgType != "" {
		query = query.Where("msg_type = ?", q.MsgType)
	}
	if q.Direction != "" {
		query = query.Where("direction = ?", q.Direction)
	}
	if !q.Since.IsZero() {
		query = query.Where("created_at >= ?", q.Since.UnixMilli())
	}
	var models []frameModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Frame, 0, len(models))
	for _, m := range models {
		out = append(out, Frame{
			Direction: m.Direction,
			Session:   m.Session,
			MsgType:   m.MsgType,
			SeqNum:    m.SeqNum,
			Raw:       m.Raw,
			At:        time.UnixMilli(m.CreatedAtUnix),
		})
	}
	return out, nil
}

// Fields returns the tag=value map stored alongside a frame.
func (s *Store) Fields(ctx context.Context, msgType string, seqNum int) (map[string]string, error) {
	var m frameModel
	err := s.db.WithContext(ctx).Where("msg_type = ? AND seq_num = ?", msgType, seqNum).Order("id DESC").First(&m).Error
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if len(m.Fields) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(m.Fields, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fieldsJSON splits a SOH-delimited frame into a tag->value object. Repeated
// tags keep their last value.
func fieldsJSON(raw string) []byte {
	fields := make(map[string]string)
	for _, part := range strings.Split(raw, "\x01") {
		tag, value, ok := strings.Cut(part, "=")
		if !ok || tag == "" {
			continue
		}
		fields[tag] = value
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return []byte("{}")
	}
	return b
}
