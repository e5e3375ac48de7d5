package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/craftmart/craftmart-backend/pkg/db/models"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
	"gorm.io/gorm"
)

type catalogRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	FindCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListProductsByCategory(ctx context.Context, categoryID uint64) ([]models.Product, error)
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
}

// Service exposes the read-only storefront catalog.
type Service interface {
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListCategoryProducts(ctx context.Context, slug string) (*CategoryProducts, error)
	GetProduct(ctx context.Context, slug string) (*ProductDTO, error)
}

type service struct {
	repo catalogRepository
}

func NewService(repo catalogRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, NewCategoryDTO(c))
	}
	return out, nil
}

func (s *service) ListCategoryProducts(ctx context.Context, slug string) (*CategoryProducts, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category slug required")
	}
	category, err := s.repo.FindCategoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	products, err := s.repo.ListProductsByCategory(ctx, category.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	out := &CategoryProducts{
		Category: NewCategoryDTO(*category),
		Products: make([]ProductDTO, 0, len(products)),
	}
	for _, p := range products {
		dto := NewProductDTO(p)
		dto.CategorySlug = category.Slug
		out.Products = append(out.Products, dto)
	}
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, slug string) (*ProductDTO, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product slug required")
	}
	product, err := s.repo.FindProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	dto := NewProductDTO(*product)
	return &dto, nil
}
