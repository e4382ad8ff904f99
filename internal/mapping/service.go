package mapping

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgerdesk/internal/shared"
)

// Gateway persists mapping configuration in the ERP backend.
type Gateway interface {
	ListMappings(ctx context.Context, token string) ([]Mapping, error)
	CreateMapping(ctx context.Context, token string, m Mapping) (Mapping, error)
	UpdateMapping(ctx context.Context, token string, m Mapping) (Mapping, error)
	DeleteMapping(ctx context.Context, token string, id int64) error
	PreviewMappings(ctx context.Context, token, transactionType string) ([]Mapping, error)
	AccountNatures(ctx context.Context, token string) ([]AccountNature, error)
	ValueSources(ctx context.Context, token string) ([]ValueSource, error)
}

// ListFilter narrows the mapping list.
type ListFilter struct {
	Search string
	Side   string
}

// Options are the picker values of the mapping editor.
type Options struct {
	Natures      []AccountNature `json:"account_natures"`
	ValueSources []ValueSource   `json:"value_sources"`
}

// Service applies capability checks and validation in front of the Gateway.
type Service struct {
	gateway  Gateway
	validate *validator.Validate
}

// NewService constructs the mapping service.
func NewService(gateway Gateway) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{gateway: gateway, validate: v}
}

// List returns the mappings matching filter, ordered by transaction type then sequence.
func (s *Service) List(ctx context.Context, sess shared.Session, filter ListFilter) ([]Mapping, error) {
	if !sess.Capabilities.Mapping.View {
		return nil, shared.ErrForbidden
	}
	rows, err := s.gateway.ListMappings(ctx, sess.Token)
	if err != nil {
		return nil, err
	}
	out := Filter(rows, filter)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TransactionType != out[j].TransactionType {
			return out[i].TransactionType < out[j].TransactionType
		}
		return out[i].EntrySequence < out[j].EntrySequence
	})
	return out, nil
}

// Get returns one mapping.
func (s *Service) Get(ctx context.Context, sess shared.Session, id int64) (Mapping, error) {
	rows, err := s.List(ctx, sess, ListFilter{})
	if err != nil {
		return Mapping{}, err
	}
	for _, row := range rows {
		if row.ID == id {
			return row, nil
		}
	}
	return Mapping{}, ErrMappingNotFound
}

// Create validates and stores a new mapping.
func (s *Service) Create(ctx context.Context, sess shared.Session, m Mapping) (Mapping, error) {
	if !sess.Capabilities.Mapping.Create {
		return Mapping{}, shared.ErrForbidden
	}
	m.ID = 0
	m = Normalize(m)
	if err := s.Validate(m); err != nil {
		return Mapping{}, err
	}
	return s.gateway.CreateMapping(ctx, sess.Token, m)
}

// Update validates and replaces an existing mapping.
func (s *Service) Update(ctx context.Context, sess shared.Session, m Mapping) (Mapping, error) {
	if !sess.Capabilities.Mapping.Edit {
		return Mapping{}, shared.ErrForbidden
	}
	if m.ID <= 0 {
		return Mapping{}, ErrIDRequired
	}
	m = Normalize(m)
	if err := s.Validate(m); err != nil {
		return Mapping{}, err
	}
	return s.gateway.UpdateMapping(ctx, sess.Token, m)
}

// Delete removes a mapping.
func (s *Service) Delete(ctx context.Context, sess shared.Session, id int64) error {
	if !sess.Capabilities.Mapping.Delete {
		return shared.ErrForbidden
	}
	if id <= 0 {
		return ErrIDRequired
	}
	return s.gateway.DeleteMapping(ctx, sess.Token, id)
}

// Preview returns the journal entries a transaction type would generate, in sequence order.
func (s *Service) Preview(ctx context.Context, sess shared.Session, transactionType string) ([]Mapping, error) {
	if !sess.Capabilities.Mapping.View {
		return nil, shared.ErrForbidden
	}
	transactionType = strings.ToUpper(strings.TrimSpace(transactionType))
	if transactionType == "" {
		return nil, shared.NewValidationError(shared.RuleInvalidField, "transaction_type is required")
	}
	rows, err := s.gateway.PreviewMappings(ctx, sess.Token, transactionType)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].EntrySequence < rows[j].EntrySequence
	})
	return rows, nil
}

// Options loads natures and value sources in parallel.
func (s *Service) Options(ctx context.Context, sess shared.Session) (Options, error) {
	if !sess.Capabilities.Mapping.View {
		return Options{}, shared.ErrForbidden
	}
	var opts Options
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		natures, err := s.gateway.AccountNatures(ctx, sess.Token)
		opts.Natures = natures
		return err
	})
	g.Go(func() error {
		sources, err := s.gateway.ValueSources(ctx, sess.Token)
		opts.ValueSources = sources
		return err
	})
	if err := g.Wait(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks the struct rules of m.
func (s *Service) Validate(m Mapping) error {
	err := s.validate.Struct(m)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return shared.NewValidationError(shared.RuleInvalidField, strings.Join(msgs, "; "))
}

// Normalize trims text fields and upper-cases the codes.
func Normalize(m Mapping) Mapping {
	m.TransactionType = strings.ToUpper(strings.TrimSpace(m.TransactionType))
	m.AccountNature = strings.TrimSpace(m.AccountNature)
	m.DebitCredit = strings.ToUpper(strings.TrimSpace(m.DebitCredit))
	m.ValueSource = strings.TrimSpace(m.ValueSource)
	m.DescriptionTemplate = strings.TrimSpace(m.DescriptionTemplate)
	return m
}

// Filter applies the search text (transaction type, nature, value source) and the debit/credit side.
func Filter(rows []Mapping, filter ListFilter) []Mapping {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	side := strings.ToUpper(strings.TrimSpace(filter.Side))
	out := make([]Mapping, 0, len(rows))
	for _, row := range rows {
		switch side {
		case FilterDebit:
			if row.DebitCredit != "D" {
				continue
			}
		case FilterCredit:
			if row.DebitCredit != "C" {
				continue
			}
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(row.TransactionType), search) &&
			!strings.Contains(strings.ToLower(row.AccountNature), search) &&
			!strings.Contains(strings.ToLower(row.ValueSource), search) {
			continue
		}
		out = append(out, row)
	}
	return out
}
