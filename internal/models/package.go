package models

import "github.com/shopspring/decimal"

const (
	// PackageTypeOneTime разовый пакет раскладов
	PackageTypeOneTime = "one_time"
	// PackageTypeSubscription подписка на период
	PackageTypeSubscription = "subscription"
)

// Package пакет, который можно купить в проекте.
type Package struct {
	ID               int             `json:"id" validate:"required"`
	Name             string          `json:"name"`
	PackageType      string          `json:"package_type"`
	Price            decimal.Decimal `json:"price"`
	NumReadings      *int            `json:"num_readings,omitempty"`
	SubscriptionDays *int            `json:"subscription_days,omitempty"`
	IsActive         bool            `json:"is_active"`
}

// IsSubscription сообщает, является ли пакет подпиской.
func (p Package) IsSubscription() bool {
	return p.PackageType == PackageTypeSubscription
}

// PaymentResult авторитетный ответ сервера на тестовый платёж.
type PaymentResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	NewBalance      int    `json:"new_balance" validate:"gte=0"`
	SubscriptionEnd *Date  `json:"subscription_end,omitempty"`
}
