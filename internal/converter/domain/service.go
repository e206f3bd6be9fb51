package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Converter, error)
	Get(ctx context.Context, id snowflake.ID) (*Converter, error)
	GetByCode(ctx context.Context, code string) (*Converter, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

type CreateRequest struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Make      string `json:"make"`
	PtContent string `json:"pt_content"`
	PdContent string `json:"pd_content"`
	RhContent string `json:"rh_content"`
	Weight    string `json:"weight"`
}

type ListRequest struct {
	AfterID snowflake.ID `json:"after_id"`
	Limit   int          `json:"limit"`
}

type ListResponse struct {
	Converters []Converter   `json:"converters"`
	NextID     *snowflake.ID `json:"next_id,omitempty"`
	HasMore    bool          `json:"has_more"`
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var (
	ErrInvalidConverter  = errors.New("invalid_converter")
	ErrConverterNotFound = errors.New("converter_not_found")
	ErrConverterExists   = errors.New("converter_exists")
)
