package report

import (
	"context"
	"time"

	"github.com/dharsanguruparan/LineReport/internal/logger"
	"github.com/dharsanguruparan/LineReport/internal/model"
)

// Appender writes one report row.
type Appender interface {
	Append(ctx context.Context, r model.Report) error
}

// Uploader stores a photo and returns its public link.
type Uploader interface {
	Upload(ctx context.Context, photo *model.Photo) (string, error)
}

// Deleter removes a stored photo by link. Uploaders that implement it get
// orphan cleanup when an append fails.
type Deleter interface {
	Delete(ctx context.Context, link string) error
}

const successNotice = "Reporte enviado correctamente"

// Service drives submissions through the form states.
type Service struct {
	log      *logger.Logger
	records  Appender
	photos   Uploader
	machines []string
	loc      *time.Location
	cleanup  bool
	now      func() time.Time
}

// Options tune a Service. The zero value is usable.
type Options struct {
	Location       *time.Location
	CleanupOrphans bool
	Now            func() time.Time
}

// NewService builds a Service. machines is the selectable catalog; its first
// entry is the default machine of a fresh form.
func NewService(log *logger.Logger, records Appender, photos Uploader, machines []string, opts Options) *Service {
	if log == nil {
		log = logger.Nop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		log:      log.With("component", "report"),
		records:  records,
		photos:   photos,
		machines: machines,
		loc:      loc,
		cleanup:  opts.CleanupOrphans,
		now:      now,
	}
}

// Machines returns the selectable machine catalog.
func (s *Service) Machines() []string {
	return s.machines
}

// Defaults are the input values of a fresh form.
func (s *Service) Defaults() Fields {
	var f Fields
	if len(s.machines) > 0 {
		f.Machine = s.machines[0]
	}
	return f
}

// NewForm returns a freshly rendered form holding the defaults.
func (s *Service) NewForm() Form {
	return Form{State: StateIdle, Fields: s.Defaults()}
}

// Reject returns form to collecting with a warning and no side effects. It is
// used for problems found outside field validation, like a bad photo or an
// expired form token.
func (s *Service) Reject(form Form, reason string) Form {
	err := &ValidationError{Reason: reason}
	return Form{State: StateCollecting, Fields: form.Fields, Warning: reason, Err: err}
}

// Submit runs one submit action. The returned form is in StateCollecting with
// a warning (validation failed), StateFailed (upload or append failed) or
// StateSucceeded. photo may be nil.
func (s *Service) Submit(ctx context.Context, form Form, photo *model.Photo) Form {
	form = form.Collect(form.Fields)
	form.State = StateValidating
	fields := form.Fields.Trimmed()
	if missing := fields.Missing(); len(missing) > 0 {
		s.log.Debug("report rejected", "missing", missing)
		err := &ValidationError{Missing: missing, Reason: "Por favor, complete todos los campos."}
		return Form{State: StateCollecting, Fields: form.Fields, Warning: err.Error(), Err: err}
	}

	form.State = StateSubmitting
	rep, err := s.submit(ctx, fields, photo)
	if err != nil {
		s.log.Error("report submission failed", "machine", fields.Machine, "error", err)
		return Form{State: StateFailed, Fields: form.Fields, Err: err}
	}
	s.log.Info("report submitted", "machine", rep.Machine, "operator", rep.Operator, "has_photo", rep.PhotoURL != "")
	return Form{State: StateSucceeded, Fields: fields, Notice: successNotice, PhotoURL: rep.PhotoURL}
}

func (s *Service) submit(ctx context.Context, fields Fields, photo *model.Photo) (model.Report, error) {
	// Captured before any network call so the row records when the operator
	// pressed submit.
	submittedAt := s.now().In(s.loc)

	var photoURL string
	if photo != nil && len(photo.Data) > 0 {
		link, err := s.photos.Upload(ctx, photo)
		if err != nil {
			return model.Report{}, &UploadError{Err: err}
		}
		photoURL = link
	}

	rep := model.Report{
		Timestamp:   model.FormatTimestamp(submittedAt),
		Operator:    fields.Operator,
		Machine:     fields.Machine,
		Product:     fields.Product,
		Order:       fields.Order,
		Description: fields.Description,
		PhotoURL:    photoURL,
	}
	if err := s.records.Append(ctx, rep); err != nil {
		return model.Report{}, s.appendFailed(ctx, err, photoURL)
	}
	return rep, nil
}

func (s *Service) appendFailed(ctx context.Context, err error, photoURL string) error {
	appendErr := &AppendError{Err: err, PhotoURL: photoURL}
	if photoURL == "" {
		return appendErr
	}
	deleter, ok := s.photos.(Deleter)
	if !s.cleanup || !ok {
		appendErr.Orphaned = true
		s.log.Warn("uploaded photo left without a report row", "photo_url", photoURL)
		return appendErr
	}
	// The request context may already be done; cleanup gets its own budget.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if delErr := deleter.Delete(cleanupCtx, photoURL); delErr != nil {
		appendErr.Orphaned = true
		appendErr.DeleteErr = delErr
		s.log.Error("orphaned photo cleanup failed", "photo_url", photoURL, "error", delErr)
		return appendErr
	}
	s.log.Info("orphaned photo removed", "photo_url", photoURL)
	return appendErr
}
