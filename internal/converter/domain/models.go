package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalyser/internal/pricing/calculator"
)

// Converter is a catalogue entry. Metal content is kept as entered by the
// catalogue source and parsed only when a valuation needs it.
type Converter struct {
	ID        snowflake.ID `json:"id" gorm:"column:id"`
	Code      string       `json:"code" gorm:"column:code"`
	Name      string       `json:"name" gorm:"column:name"`
	Make      string       `json:"make,omitempty" gorm:"column:make"`
	PtContent string       `json:"pt_content" gorm:"column:pt_content"`
	PdContent string       `json:"pd_content" gorm:"column:pd_content"`
	RhContent string       `json:"rh_content" gorm:"column:rh_content"`
	Weight    string       `json:"weight" gorm:"column:weight"`
	CreatedAt time.Time    `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"column:updated_at"`
}

func (Converter) TableName() string { return "converters" }

func (c Converter) Content() calculator.Content {
	return calculator.ParseContent(c.PtContent, c.PdContent, c.RhContent, c.Weight)
}
