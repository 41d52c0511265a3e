package partner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportRequest is the body of POST /partner/update.
type ImportRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	ShopID     uuid.UUID `json:"shop_id"`
	ShopName   string    `json:"shop_name"`
	Categories int       `json:"categories"`
	Listings   int       `json:"listings"`
	Replaced   int64     `json:"replaced"`
}

// Service replaces a shop's catalog from its partner price list.
type Service interface {
	Import(ctx context.Context, ownerID uuid.UUID, ownerType enums.UserType, req ImportRequest) (*ImportResult, error)
}

// ServiceParams bundles the dependencies of the import service.
type ServiceParams struct {
	DB      db.TxRunner
	Fetcher Fetcher
	Outbox  outbox.Emitter
	Metrics *metrics.PartnerImportMetrics
	Logger  *logger.Logger
}

type service struct {
	db      db.TxRunner
	fetcher Fetcher
	outbox  outbox.Emitter
	metrics *metrics.PartnerImportMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Fetcher == nil {
		return nil, fmt.Errorf("fetcher required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:      params.DB,
		fetcher: params.Fetcher,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Import(ctx context.Context, ownerID uuid.UUID, ownerType enums.UserType, req ImportRequest) (*ImportResult, error) {
	if ownerType != enums.UserTypeShop {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only shop accounts can import price lists")
	}
	sourceURL, err := normalizeSourceURL(req.URL)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	ctx = s.logg.WithFields(ctx, map[string]any{"source_url": sourceURL})

	result, err := s.run(ctx, ownerID, sourceURL)
	if err != nil {
		reason := "internal"
		if typed := pkgerrors.As(err); typed != nil {
			reason = strings.ToLower(string(typed.Code()))
		}
		s.metrics.ObserveFailure(time.Since(started), reason)
		s.logg.Warn(s.logg.WithFields(ctx, pkgerrors.Dump(err).Fields()), "partner.import.failed")
		return nil, err
	}

	s.metrics.ObserveSuccess(time.Since(started), result.Listings)
	ctx = s.logg.WithShopID(ctx, result.ShopID.String())
	s.logg.Info(s.logg.WithField(ctx, "listings", result.Listings), "partner.import.completed")
	return result, nil
}

func (s *service) run(ctx context.Context, ownerID uuid.UUID, sourceURL string) (*ImportResult, error) {
	body, err := s.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeFetch, err, "price list could not be fetched")
		}
		return nil, err
	}
	doc, err := ParseDocument(body)
	if err != nil {
		return nil, err
	}

	var result *ImportResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		// imports of one owner serialize on the user row
		if _, err := users.NewRepository(tx).LockByID(ctx, ownerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock owner")
		}

		res, err := s.replaceCatalog(ctx, NewRepository(tx), ownerID, sourceURL, doc)
		if err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPartnerCatalogImported,
			AggregateType: enums.AggregateShop,
			AggregateID:   res.ShopID,
			Actor:         &outbox.ActorRef{UserID: ownerID, Type: string(enums.UserTypeShop)},
			Data: payloads.PartnerCatalogImportedEvent{
				ShopID:     res.ShopID,
				OwnerID:    ownerID,
				ShopName:   res.ShopName,
				SourceURL:  sourceURL,
				Categories: res.Categories,
				Listings:   res.Listings,
				ImportedAt: s.now(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit catalog imported")
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) replaceCatalog(ctx context.Context, repo *Repository, ownerID uuid.UUID, sourceURL string, doc *Document) (*ImportResult, error) {
	shop, err := repo.UpsertShop(ctx, ownerID, doc.Shop, sourceURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert shop")
	}

	categoryIDs := make(map[int64]uuid.UUID, len(doc.Categories))
	for _, c := range doc.Categories {
		category, err := repo.EnsureCategory(ctx, c.Name)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert category")
		}
		if err := repo.LinkCategory(ctx, shop.ID, category.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link category")
		}
		categoryIDs[c.ID] = category.ID
	}

	replaced, err := repo.RetireListings(ctx, shop.ID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retire listings")
	}

	parameterIDs := map[string]uuid.UUID{}
	for _, good := range doc.Goods {
		product, err := repo.EnsureProduct(ctx, good.Name, categoryIDs[good.CategoryID])
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert product")
		}
		info := &models.ProductInfo{
			ProductID:  product.ID,
			ShopID:     shop.ID,
			ExternalID: good.ID,
			Model:      good.Model,
			Price:      good.Price,
			PriceRRC:   good.PriceRRC,
			Quantity:   good.Quantity,
		}
		if err := repo.CreateListing(ctx, info); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "price list lists the same product twice").
					WithDetails(map[string]string{"goods": fmt.Sprintf("product %q with id %d is duplicated", good.Name, good.ID)})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create listing")
		}

		params := make([]models.ProductParameter, 0, len(good.Parameters))
		for _, p := range good.Parameters {
			paramID, ok := parameterIDs[p.Name]
			if !ok {
				parameter, err := repo.EnsureParameter(ctx, p.Name)
				if err != nil {
					return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert parameter")
				}
				paramID = parameter.ID
				parameterIDs[p.Name] = paramID
			}
			params = append(params, models.ProductParameter{ProductInfoID: info.ID, ParameterID: paramID, Value: p.Value})
		}
		if err := repo.CreateParameters(ctx, params); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create parameters")
		}
	}

	return &ImportResult{
		ShopID:     shop.ID,
		ShopName:   shop.Name,
		Categories: len(doc.Categories),
		Listings:   len(doc.Goods),
		Replaced:   replaced,
	}, nil
}

var supportedSchemes = map[string]bool{"http": true, "https": true, "gs": true}

func normalizeSourceURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.ParseRequestURI(trimmed)
	if err != nil || !supportedSchemes[parsed.Scheme] || parsed.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid price list url").
			WithDetails(map[string]string{"url": "must be an absolute http(s) or gs URL"})
	}
	return trimmed, nil
}
