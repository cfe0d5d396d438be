package orders

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
)

func TestAddLineReservesStock(t *testing.T) {
	f := newFixture(t)

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	line, err := f.lines.AddLine(order.Number, 93, 10)
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	if line.ID == "" {
		t.Fatal("expected assigned line id")
	}
	if line.ProductRef != 93 || line.Quantity != 10 {
		t.Fatalf("unexpected line: %+v", line)
	}

	chai, _ := f.products.Get(93)
	if chai.UnitsInStock != 40 {
		t.Fatalf("chai stock = %d, want 40", chai.UnitsInStock)
	}
	if chai.UnitsOnOrder != 10 {
		t.Fatalf("chai on order = %d, want 10", chai.UnitsOnOrder)
	}

	got, _ := f.orders.Get(order.Number)
	if len(got.Lines) != 1 || got.Lines[0].ID != line.ID {
		t.Fatalf("unexpected persisted lines: %+v", got.Lines)
	}
	// Добавление строки не проставляет дату отгрузки.
	if got.Shipped() {
		t.Fatal("order must remain open after adding a line")
	}
}

func TestAddLineRejectsNonPositiveQuantity(t *testing.T) {
	f := newFixture(t)

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	for _, quantity := range []int32{0, -5} {
		_, err := f.lines.AddLine(order.Number, 93, quantity)
		if !domain.IsInvalidState(err) {
			t.Fatalf("quantity %d: expected invalid state, got %v", quantity, err)
		}
	}

	chai, _ := f.products.Get(93)
	if chai.UnitsInStock != 50 {
		t.Fatalf("chai stock = %d, want 50 (untouched)", chai.UnitsInStock)
	}
}

func TestAddLineToShippedOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := f.lines.AddLine(order.Number, 93, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if _, err := f.lifecycle.RecordShipment(order.Number); err != nil {
		t.Fatalf("RecordShipment: %v", err)
	}

	_, err = f.lines.AddLine(order.Number, 93, 1)
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestAddLineUnknownOrderAndProduct(t *testing.T) {
	f := newFixture(t)

	if _, err := f.lines.AddLine(424242, 93, 1); !domain.IsNotFound(err) {
		t.Fatalf("unknown order: expected not found, got %v", err)
	}

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := f.lines.AddLine(order.Number, 123456, 1); !domain.IsNotFound(err) {
		t.Fatalf("unknown product: expected not found, got %v", err)
	}
}

func TestAddLineInsufficientStock(t *testing.T) {
	f := newFixture(t)

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	_, err = f.lines.AddLine(order.Number, 95, 5)
	if !domain.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}

	chang, _ := f.products.Get(95)
	if chang.UnitsInStock != 4 || chang.UnitsOnOrder != 0 {
		t.Fatalf("chang must be untouched, got stock=%d on_order=%d", chang.UnitsInStock, chang.UnitsOnOrder)
	}
	got, _ := f.orders.Get(order.Number)
	if len(got.Lines) != 0 {
		t.Fatalf("order must have no lines, got %d", len(got.Lines))
	}
}

func TestAddLineZeroStock(t *testing.T) {
	f := newFixture(t)

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	// Нулевой остаток — частный случай нехватки товара.
	_, err = f.lines.AddLine(order.Number, 97, 1)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestAddLineChecksProductBeforeOrderState(t *testing.T) {
	f := newFixture(t)

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := f.lines.AddLine(order.Number, 93, 1); err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if _, err := f.lifecycle.RecordShipment(order.Number); err != nil {
		t.Fatalf("RecordShipment: %v", err)
	}

	// Товар разрешается раньше проверки состояния заказа: по отгруженному
	// заказу с несуществующим товаром возвращается NotFound, не InvalidState.
	_, err = f.lines.AddLine(order.Number, 123456, 1)
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}

	// И раньше разрешения самого заказа.
	_, err = f.lines.AddLine(424242, 123456, 1)
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected product not found, got %v", err)
	}
}

func TestAddLineEmitsEvent(t *testing.T) {
	f := newFixture(t)

	order, err := f.lifecycle.CreateOrder("ALFKI")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if _, err := f.lines.AddLine(order.Number, 93, 2); err != nil {
		t.Fatalf("AddLine: %v", err)
	}

	pending := f.outbox.AllPending()
	if len(pending) != 2 {
		t.Fatalf("outbox pending = %d, want 2", len(pending))
	}
	found := false
	for _, msg := range pending {
		if msg.EventType == "order.line_added" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no order.line_added event in outbox: %+v", pending)
	}
}
