package data

import (
	"fmt"
	"os"

	"github.com/locogo/server/internal/finance"
	"gopkg.in/yaml.v3"
)

// VehicleModel is a purchasable vehicle type.
type VehicleModel struct {
	ID      uint8         `yaml:"id"`
	Name    string        `yaml:"name"`
	Price   finance.Money `yaml:"price"`
	Speed   int16         `yaml:"speed"` // map units per tick
	Running finance.Money `yaml:"running_cost"`
}

// PriceList holds construction and purchase costs.
type PriceList struct {
	TrackPiece   finance.Money  `yaml:"track_piece"`
	TrackRemove  finance.Money  `yaml:"track_remove"` // negative: refund
	Station      finance.Money  `yaml:"station"`
	Signal       finance.Money  `yaml:"signal"`
	ClearTile    finance.Money  `yaml:"clear_tile"`
	RefundRatio  float64        `yaml:"refund_ratio"` // share of the price returned on sale
	StartingCash finance.Money  `yaml:"starting_cash"`
	Vehicles     []VehicleModel `yaml:"vehicles"`

	byID map[uint8]*VehicleModel
}

// LoadPriceList loads prices.yaml.
func LoadPriceList(path string) (*PriceList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read price list: %w", err)
	}
	p := DefaultPrices()
	p.Vehicles = nil
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("parse price list: %w", err)
	}
	if p.RefundRatio < 0 || p.RefundRatio > 1 {
		return nil, fmt.Errorf("price list: refund_ratio %v outside [0,1]", p.RefundRatio)
	}
	if err := p.index(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultPrices is used when no price file is configured.
func DefaultPrices() *PriceList {
	p := &PriceList{
		TrackPiece:   60,
		TrackRemove:  -15,
		Station:      400,
		Signal:       120,
		ClearTile:    20,
		RefundRatio:  0.75,
		StartingCash: 200000,
		Vehicles: []VehicleModel{
			{ID: 1, Name: "Tank Engine", Price: 8500, Speed: 2, Running: 120},
			{ID: 2, Name: "Goods Wagon", Price: 1200, Speed: 2, Running: 10},
			{ID: 3, Name: "Omnibus", Price: 4300, Speed: 3, Running: 60},
		},
	}
	p.index()
	return p
}

func (p *PriceList) index() error {
	p.byID = make(map[uint8]*VehicleModel, len(p.Vehicles))
	for i := range p.Vehicles {
		v := &p.Vehicles[i]
		if _, dup := p.byID[v.ID]; dup {
			return fmt.Errorf("price list: duplicate vehicle id %d", v.ID)
		}
		p.byID[v.ID] = v
	}
	return nil
}

// Vehicle returns the model with the given id, or nil.
func (p *PriceList) Vehicle(id uint8) *VehicleModel {
	return p.byID[id]
}

// Refund is the sale value of a vehicle bought at price.
func (p *PriceList) Refund(price finance.Money) finance.Money {
	return finance.Money(float64(price) * p.RefundRatio)
}
