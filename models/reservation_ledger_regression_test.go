package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flowstock/flowstock_backend/appctx"
	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/shopspring/decimal"
)

// End-to-end exercise of the reservation ledger against real MySQL and
// Redis: reserve, over-reserve, confirm, cancel, then a purchase order
// received in two partial deliveries with an over-receipt attempt in
// between. Quantities are asserted after every step.
func TestReservationLedgerLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "flowstock_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	// Sequence counters must not survive from a previous run.
	if err := config.ClearRedis(ctx); err != nil {
		t.Fatalf("ClearRedis: %v", err)
	}
	models.MigrateTable()
	models.StartAuditRecorder()

	ctx = appctx.Set(ctx, appctx.ContextKeyUsername, "test")
	ctx = appctx.Set(ctx, appctx.ContextKeyUserId, 1)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Sku:             "WIDGET-001",
		Name:            "Widget",
		UnitPrice:       decimal.NewFromInt(250),
		ReorderPoint:    5,
		ReorderQuantity: 20,
		InitialStock:    10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	assertStock(t, ctx, product.ID, 10, 0)

	// Reserve 6 of 10.
	order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		CustomerName: "Acme Retail",
		Details: []models.NewSalesOrderDetail{
			{ProductId: product.ID, DetailQty: 6},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}
	if order.CurrentStatus != models.SalesOrderStatusReserved {
		t.Fatalf("order status = %s, want RESERVED", order.CurrentStatus)
	}
	if order.OrderNumber == "" {
		t.Fatal("order number not assigned")
	}
	assertStock(t, ctx, product.ID, 4, 6)

	// A second order for 5 must fail: only 4 are available.
	_, err = models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		CustomerName: "Acme Retail",
		Details: []models.NewSalesOrderDetail{
			{ProductId: product.ID, DetailQty: 5},
		},
	})
	var insufficientErr *utils.InsufficientStockError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("over-reserve error = %v, want InsufficientStockError", err)
	}
	if insufficientErr.Available != 4 {
		t.Fatalf("available in error = %d, want 4", insufficientErr.Available)
	}
	assertStock(t, ctx, product.ID, 4, 6)

	// Confirm consumes the reservation.
	confirmed, err := models.ConfirmSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("ConfirmSalesOrder: %v", err)
	}
	if confirmed.CurrentStatus != models.SalesOrderStatusConfirmed {
		t.Fatalf("order status = %s, want CONFIRMED", confirmed.CurrentStatus)
	}
	assertStock(t, ctx, product.ID, 4, 0)

	// Confirm is not repeatable.
	if _, err := models.ConfirmSalesOrder(ctx, order.ID); err == nil {
		t.Fatal("confirming a confirmed order must fail")
	}

	// Cancel releases the reservation in full.
	second, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		CustomerName: "Beta Stores",
		Details: []models.NewSalesOrderDetail{
			{ProductId: product.ID, DetailQty: 2},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder(second): %v", err)
	}
	assertStock(t, ctx, product.ID, 2, 2)
	if _, err := models.CancelSalesOrder(ctx, second.ID); err != nil {
		t.Fatalf("CancelSalesOrder: %v", err)
	}
	assertStock(t, ctx, product.ID, 4, 0)

	// Purchase 20, received in two deliveries.
	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		SupplierName: "Widget Works",
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: product.ID, Quantity: 20, UnitCost: decimal.NewFromInt(120)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusOrdered {
		t.Fatalf("po status = %s, want ORDERED", po.CurrentStatus)
	}

	po, err = models.ReceivePurchaseOrder(ctx, po.ID, &models.ReceiveItemsInput{
		Details: []models.ReceiveItemInput{{ProductId: product.ID, Quantity: 8}},
	})
	if err != nil {
		t.Fatalf("ReceivePurchaseOrder(8): %v", err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusPartiallyReceived {
		t.Fatalf("po status = %s, want PARTIALLY_RECEIVED", po.CurrentStatus)
	}
	assertStock(t, ctx, product.ID, 12, 0)

	// 12 remain on the line; receiving 15 must be rejected whole.
	_, err = models.ReceivePurchaseOrder(ctx, po.ID, &models.ReceiveItemsInput{
		Details: []models.ReceiveItemInput{{ProductId: product.ID, Quantity: 15}},
	})
	var overErr *utils.OverReceiptError
	if !errors.As(err, &overErr) {
		t.Fatalf("over-receipt error = %v, want OverReceiptError", err)
	}
	if overErr.Remaining != 12 {
		t.Fatalf("remaining in error = %d, want 12", overErr.Remaining)
	}
	assertStock(t, ctx, product.ID, 12, 0)

	po, err = models.ReceivePurchaseOrder(ctx, po.ID, &models.ReceiveItemsInput{
		Details: []models.ReceiveItemInput{{ProductId: product.ID, Quantity: 12}},
	})
	if err != nil {
		t.Fatalf("ReceivePurchaseOrder(12): %v", err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusReceived {
		t.Fatalf("po status = %s, want RECEIVED", po.CurrentStatus)
	}
	if len(po.Receipts) != 2 {
		t.Fatalf("receipts = %d, want 2", len(po.Receipts))
	}
	assertStock(t, ctx, product.ID, 24, 0)

	// A fully received order cannot be cancelled.
	if _, err := models.CancelPurchaseOrder(ctx, po.ID); err == nil {
		t.Fatal("cancelling a received purchase order must fail")
	}

	// Terminal states stay terminal even against a stale read: the first
	// order is CONFIRMED, so cancel must be rejected and the ledger must
	// not move.
	var transitionErr *utils.InvalidTransitionError
	if _, err := models.CancelSalesOrder(ctx, order.ID); !errors.As(err, &transitionErr) {
		t.Fatalf("cancel of confirmed order = %v, want InvalidTransitionError", err)
	}
	assertStock(t, ctx, product.ID, 24, 0)

	// A receipt against a cancelled purchase order must not resurrect it
	// or credit stock.
	cancelledPo, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		SupplierName: "Widget Works",
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: product.ID, Quantity: 5, UnitCost: decimal.NewFromInt(120)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder(cancelled): %v", err)
	}
	if _, err := models.CancelPurchaseOrder(ctx, cancelledPo.ID); err != nil {
		t.Fatalf("CancelPurchaseOrder: %v", err)
	}
	_, err = models.ReceivePurchaseOrder(ctx, cancelledPo.ID, &models.ReceiveItemsInput{
		Details: []models.ReceiveItemInput{{ProductId: product.ID, Quantity: 5}},
	})
	if !errors.As(err, &transitionErr) {
		t.Fatalf("receive against cancelled order = %v, want InvalidTransitionError", err)
	}
	fetched, err := models.GetPurchaseOrder(ctx, cancelledPo.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	if fetched.CurrentStatus != models.PurchaseOrderStatusCancelled {
		t.Fatalf("po status = %s, want CANCELLED", fetched.CurrentStatus)
	}
	assertStock(t, ctx, product.ID, 24, 0)

	raceSalesOrderTransitions(t, ctx, product.ID)
	racePurchaseOrderReceiveCancel(t, ctx, product.ID)
}

// Confirm and cancel the same RESERVED order from two goroutines. Exactly
// one transition may win; the loser must see InvalidTransitionError and the
// ledger must match the winner alone.
func raceSalesOrderTransitions(t *testing.T, ctx context.Context, productId int) {
	before, err := models.GetStockSummary(ctx, productId)
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}

	order, err := models.CreateSalesOrder(ctx, &models.NewSalesOrder{
		CustomerName: "Race Retail",
		Details: []models.NewSalesOrderDetail{
			{ProductId: productId, DetailQty: 3},
		},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := models.ConfirmSalesOrder(ctx, order.ID)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := models.CancelSalesOrder(ctx, order.ID)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	var winners, losers int
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		losers++
		var transitionErr *utils.InvalidTransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("losing transition = %v, want InvalidTransitionError", err)
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("winners = %d losers = %d, want exactly one of each", winners, losers)
	}

	final, err := models.GetSalesOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetSalesOrder: %v", err)
	}
	switch final.CurrentStatus {
	case models.SalesOrderStatusConfirmed:
		assertStock(t, ctx, productId, before.AvailableQty-3, before.ReservedQty)
	case models.SalesOrderStatusCancelled:
		assertStock(t, ctx, productId, before.AvailableQty, before.ReservedQty)
	default:
		t.Fatalf("order status = %s, want a terminal state", final.CurrentStatus)
	}
}

// Receive and cancel the same ORDERED purchase order from two goroutines.
// Whichever lands second must be rejected, never layered on top.
func racePurchaseOrderReceiveCancel(t *testing.T, ctx context.Context, productId int) {
	before, err := models.GetStockSummary(ctx, productId)
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}

	po, err := models.CreatePurchaseOrder(ctx, &models.NewPurchaseOrder{
		SupplierName: "Race Works",
		Details: []models.NewPurchaseOrderDetail{
			{ProductId: productId, Quantity: 5, UnitCost: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := models.ReceivePurchaseOrder(ctx, po.ID, &models.ReceiveItemsInput{
			Details: []models.ReceiveItemInput{{ProductId: productId, Quantity: 5}},
		})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := models.CancelPurchaseOrder(ctx, po.ID)
		errs <- err
	}()
	wg.Wait()
	close(errs)

	var winners int
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		var transitionErr *utils.InvalidTransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("losing operation = %v, want InvalidTransitionError", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly one", winners)
	}

	final, err := models.GetPurchaseOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder: %v", err)
	}
	switch final.CurrentStatus {
	case models.PurchaseOrderStatusReceived:
		if len(final.Receipts) != 1 {
			t.Fatalf("receipts = %d, want 1", len(final.Receipts))
		}
		assertStock(t, ctx, productId, before.AvailableQty+5, before.ReservedQty)
	case models.PurchaseOrderStatusCancelled:
		if len(final.Receipts) != 0 {
			t.Fatalf("receipts on cancelled order = %d, want 0", len(final.Receipts))
		}
		assertStock(t, ctx, productId, before.AvailableQty, before.ReservedQty)
	default:
		t.Fatalf("po status = %s, want RECEIVED or CANCELLED", final.CurrentStatus)
	}
}

func assertStock(t *testing.T, ctx context.Context, productId int, available int, reserved int) {
	t.Helper()
	summary, err := models.GetStockSummary(ctx, productId)
	if err != nil {
		t.Fatalf("GetStockSummary: %v", err)
	}
	if summary.AvailableQty != available || summary.ReservedQty != reserved {
		t.Fatalf("stock = available %d / reserved %d, want %d / %d",
			summary.AvailableQty, summary.ReservedQty, available, reserved)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("flowstock-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("flowstock-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=flowstock_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
