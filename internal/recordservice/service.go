// Package recordservice coordinates the ledger and the change feed on the node.
package recordservice

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/feed"
	"github.com/starford/ansuz/internal/ledger"
	"github.com/starford/ansuz/internal/models"
)

// MaxTextLength is the longest contribution accepted, in runes.
const MaxTextLength = 256

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Publisher receives record change notifications. *feed.Broker implements it.
type Publisher interface {
	PublishRecordEvent(kind string, addr models.RecordAddress)
}

// RecordDetail is a record together with its digest.
type RecordDetail struct {
	models.Record
	Digest string `json:"digest"`
}

// Service validates requests, writes them to the ledger, and announces the
// resulting changes.
type Service struct {
	db     ledger.Ledger
	pub    Publisher
	logger *slog.Logger
}

// NewService creates a record service. pub may be nil.
func NewService(db ledger.Ledger, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, pub: pub, logger: logger}
}

// GetRecord returns the record at addr, or apperr.ErrNotFound.
func (s *Service) GetRecord(ctx context.Context, addr models.RecordAddress) (*RecordDetail, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	rec, err := s.db.Fetch(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &RecordDetail{Record: rec, Digest: checksum.Record(rec)}, nil
}

// ListRecords returns the initialized record addresses under program.
func (s *Service) ListRecords(ctx context.Context, program string) ([]models.RecordAddress, error) {
	return s.db.ListRecords(ctx, program)
}

// InitializeRecord creates the record at addr owned by owner. A second call
// for the same address fails with apperr.ErrAlreadyExists.
func (s *Service) InitializeRecord(ctx context.Context, addr models.RecordAddress, owner models.Identity) (*RecordDetail, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	if err := validateIdentity(owner); err != nil {
		return nil, err
	}
	rec, err := s.db.InitRecord(ctx, addr, owner)
	if err != nil {
		return nil, err
	}
	s.logger.Info("record initialized",
		slog.String("record", addr.String()),
		slog.String("owner", owner.Short()))
	s.publish(feed.TypeRecordInitialized, addr)
	return &RecordDetail{Record: rec, Digest: checksum.Record(rec)}, nil
}

// AppendContribution adds text by author to the record at addr.
func (s *Service) AppendContribution(ctx context.Context, addr models.RecordAddress, author models.Identity, text string) (*models.Contribution, error) {
	if err := validateAddress(addr); err != nil {
		return nil, err
	}
	if err := validateIdentity(author); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, apperr.ErrEmptyInput
	}
	if err := validation.Validate(text,
		validation.By(func(any) error {
			if !utf8.ValidString(text) {
				return validation.NewError("validation_utf8", "must be valid UTF-8")
			}
			return nil
		}),
		validation.RuneLength(1, MaxTextLength),
	); err != nil {
		return nil, fmt.Errorf("%w: text %v", apperr.ErrInvalidInput, err)
	}

	c, err := s.db.Append(ctx, addr, author, text)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("contribution appended",
		slog.String("record", addr.String()),
		slog.String("author", author.Short()),
		slog.String("id", c.ID))
	s.publish(feed.TypeRecordAppended, addr)
	return &c, nil
}

func (s *Service) publish(kind string, addr models.RecordAddress) {
	if s.pub != nil {
		s.pub.PublishRecordEvent(kind, addr)
	}
}

func validateAddress(addr models.RecordAddress) error {
	err := validation.ValidateStruct(&addr,
		validation.Field(&addr.ProgramID, validation.Required, validation.Match(segmentRe)),
		validation.Field(&addr.Key, validation.Required, validation.Match(segmentRe)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

func validateIdentity(id models.Identity) error {
	err := validation.Validate(string(id), validation.Required, is.Hexadecimal, validation.Length(64, 64))
	if err != nil {
		return fmt.Errorf("%w: identity %v", apperr.ErrInvalidInput, err)
	}
	return nil
}
