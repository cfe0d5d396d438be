package memory

import (
	"time"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

// SeedDemo наполняет in-memory хранилища демонстрационным набором данных:
// несколько клиентов, товары с разным остатком, один отправленный и один
// открытый заказ. Используется при запуске с memory-бэкендом.
func SeedDemo(customers *CustomerRepository, products *ProductRepository, orders *OrderRepository) error {
	customers.Put(domain.Customer{Code: "ALFKI", Company: "Alfreds Futterkiste", Address: "Obere Str. 57, Berlin"})
	customers.Put(domain.Customer{Code: "BONAP", Company: "Bon app'", Address: "12, rue des Bouchers, Marseille"})
	customers.Put(domain.Customer{Code: "DUMON", Company: "Du monde entier", Address: "67, rue des Cinquante Otages, Nantes"})

	products.Put(domain.Product{Ref: 93, Name: "Chai", UnitsInStock: 50})
	products.Put(domain.Product{Ref: 94, Name: "Chang", UnitsInStock: 17})
	products.Put(domain.Product{Ref: 95, Name: "Aniseed Syrup", UnitsInStock: 13})
	products.Put(domain.Product{Ref: 96, Name: "Chef Anton's Cajun Seasoning", UnitsInStock: 120})
	products.Put(domain.Product{Ref: 97, Name: "Chef Anton's Gumbo Mix", UnitsInStock: 0})

	now := time.Now().UTC()
	shippedAt := now.Add(-24 * time.Hour).Truncate(24 * time.Hour)

	// Отправленный заказ: строки нельзя добавлять, повторная отправка запрещена.
	if _, err := orders.Create(domain.Order{
		Number:          99999,
		CustomerCode:    "ALFKI",
		DeliveryAddress: "Obere Str. 57, Berlin",
		ShippedAt:       &shippedAt,
		Lines: []domain.OrderLine{
			{ID: "seed-line-1", ProductRef: 96, Quantity: 110, CreatedAt: now.Add(-48 * time.Hour)},
			{ID: "seed-line-2", ProductRef: 93, Quantity: 40, CreatedAt: now.Add(-48 * time.Hour)},
		},
		CreatedAt: now.Add(-72 * time.Hour),
		UpdatedAt: now.Add(-24 * time.Hour),
	}); err != nil {
		return err
	}

	// Открытый заказ, готовый к добавлению строк.
	if _, err := orders.Create(domain.Order{
		Number:          99998,
		CustomerCode:    "BONAP",
		DeliveryAddress: "12, rue des Bouchers, Marseille",
		CreatedAt:       now.Add(-2 * time.Hour),
		UpdatedAt:       now.Add(-2 * time.Hour),
	}); err != nil {
		return err
	}

	return nil
}
