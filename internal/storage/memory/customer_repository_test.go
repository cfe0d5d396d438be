package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/storage/memory"
)

func TestCustomerRepository_Get(t *testing.T) {
	orders := memory.NewOrderRepository()
	repo := memory.NewCustomerRepository(orders)
	repo.Put(domain.Customer{Code: "ALFKI", Company: "Alfreds Futterkiste", Address: "Obere Str. 57, Berlin"})

	customer, err := repo.Get("ALFKI")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if customer.Address != "Obere Str. 57, Berlin" {
		t.Fatalf("unexpected address %q", customer.Address)
	}

	if _, err := repo.Get("NOPE"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCustomerRepository_OrderedArticleCount(t *testing.T) {
	orders := memory.NewOrderRepository()
	repo := memory.NewCustomerRepository(orders)
	repo.Put(domain.Customer{Code: "ALFKI", Address: "Obere Str. 57, Berlin"})

	count, err := repo.OrderedArticleCount("ALFKI")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 before any orders, got %d", count)
	}

	// Количество агрегируется по строкам всех заказов клиента.
	if _, err := orders.Create(domain.Order{
		CustomerCode: "ALFKI",
		Lines: []domain.OrderLine{
			{ID: "l1", ProductRef: 93, Quantity: 110},
			{ID: "l2", ProductRef: 94, Quantity: 40},
		},
	}); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	count, err = repo.OrderedArticleCount("ALFKI")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 150 {
		t.Fatalf("expected 150 articles, got %d", count)
	}

	if _, err := repo.OrderedArticleCount("NOPE"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}
