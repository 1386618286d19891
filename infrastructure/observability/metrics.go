package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parimutuel/config"
	"parimutuel/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the round engine
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	// Metric instruments
	roundsOpenedCounter        metric.Int64Counter
	roundsActiveGauge          metric.Int64UpDownCounter
	roundsFinishedCounter      metric.Int64Counter
	wagersPlacedCounter        metric.Int64Counter
	wagerAmountHist            metric.Int64Histogram
	pointsCreditedCounter      metric.Int64Counter
	balanceTransactionsCounter metric.Int64Counter
	commandsCounter            metric.Int64Counter
	commandDurationHist        metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the exporter selected by the configuration
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	var (
		exporter sdkmetric.Exporter
		err      error
	)

	switch mp.config.MetricsExporter {
	case config.MetricsExporterNone, "":
		log.Println("Metrics export disabled")
		mp.mu.Lock()
		mp.initialized = true
		mp.mu.Unlock()
		return nil

	case config.MetricsExporterConsole:
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Println("Using console metric exporter")

	case config.MetricsExporterOTLP:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Printf("Using OTLP metric exporter: %s", mp.config.OTLPEndpoint)

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.MetricsExporter)
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(mp.config.MetricsExportInterval.Duration))
	return mp.initialize(reader)
}

// initialize builds the meter provider around reader and creates the instruments
func (mp *MetricsProvider) initialize(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Println("Metrics provider already initialized")
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.ServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("parimutuel")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	log.Println("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	// Round metrics
	mp.roundsOpenedCounter, err = mp.meter.Int64Counter(
		RoundsOpenedTotal,
		metric.WithDescription("Total number of rounds opened"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rounds opened counter: %w", err)
	}

	// UpDownCounter for gauge-like behavior
	mp.roundsActiveGauge, err = mp.meter.Int64UpDownCounter(
		RoundsActive,
		metric.WithDescription("Current number of open or closed rounds awaiting a result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rounds active gauge: %w", err)
	}

	mp.roundsFinishedCounter, err = mp.meter.Int64Counter(
		RoundsFinishedTotal,
		metric.WithDescription("Total number of finished rounds by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rounds finished counter: %w", err)
	}

	// Wager metrics
	mp.wagersPlacedCounter, err = mp.meter.Int64Counter(
		WagersPlacedTotal,
		metric.WithDescription("Total number of accepted wagers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wagers placed counter: %w", err)
	}

	mp.wagerAmountHist, err = mp.meter.Int64Histogram(
		WagerAmount,
		metric.WithDescription("Points staked per wager"),
		metric.WithUnit("{point}"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 5000, 10000),
	)
	if err != nil {
		return fmt.Errorf("failed to create wager amount histogram: %w", err)
	}

	mp.pointsCreditedCounter, err = mp.meter.Int64Counter(
		PointsCreditedTotal,
		metric.WithDescription("Points credited back to members when rounds finish"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create points credited counter: %w", err)
	}

	// Balance metrics
	mp.balanceTransactionsCounter, err = mp.meter.Int64Counter(
		BalanceTransactionsTotal,
		metric.WithDescription("Total number of balance transactions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance transactions counter: %w", err)
	}

	// Discord metrics
	mp.commandsCounter, err = mp.meter.Int64Counter(
		CommandsTotal,
		metric.WithDescription("Total number of slash commands handled"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create commands counter: %w", err)
	}

	mp.commandDurationHist, err = mp.meter.Float64Histogram(
		CommandDuration,
		metric.WithDescription("Duration of slash command handling in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create command duration histogram: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Attach records round and ledger activity published on bus
func (mp *MetricsProvider) Attach(bus *events.Bus) {
	bus.SubscribeAll(mp.handleEvent)
}

func (mp *MetricsProvider) handleEvent(ctx context.Context, event events.Event) {
	if !mp.isEnabled() {
		return
	}

	switch e := event.(type) {
	case events.RoundOpenedEvent:
		mp.roundsOpenedCounter.Add(ctx, 1)
		mp.roundsActiveGauge.Add(ctx, 1)

	case events.WagerPlacedEvent:
		mp.wagersPlacedCounter.Add(ctx, 1)
		mp.wagerAmountHist.Record(ctx, e.Amount)

	case events.RoundSettledEvent:
		mp.recordFinished(ctx, OutcomeSettled, CreditTypePayout, e.Report.TotalPaid())

	case events.RoundRefundedEvent:
		mp.recordFinished(ctx, OutcomeRefunded, CreditTypeRefund, e.Report.Total)

	case events.RoundExpiredEvent:
		mp.recordFinished(ctx, OutcomeExpired, CreditTypeRefund, e.Report.Total)

	case events.BalanceChangeEvent:
		mp.balanceTransactionsCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String(LabelType, string(e.TransactionType)),
			),
		)
	}
}

func (mp *MetricsProvider) recordFinished(ctx context.Context, outcome, creditType string, credited int64) {
	mp.roundsActiveGauge.Add(ctx, -1)
	mp.roundsFinishedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(LabelOutcome, outcome),
		),
	)
	if credited > 0 {
		mp.pointsCreditedCounter.Add(ctx, credited,
			metric.WithAttributes(
				attribute.String(LabelType, creditType),
			),
		)
	}
}

// RecordCommand records a handled slash command
func (mp *MetricsProvider) RecordCommand(command string, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelCommand, command),
	)
	mp.commandsCounter.Add(context.Background(), 1, attrs)
	mp.commandDurationHist.Record(context.Background(), duration.Seconds(), attrs)
}

// isEnabled checks if metrics are enabled and initialized. A nil provider
// is disabled.
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

// Global metrics provider instance
var (
	globalMetrics *MetricsProvider
	metricsOnce   sync.Once
)

// InitializeGlobalMetrics initializes the global metrics provider
func InitializeGlobalMetrics(ctx context.Context, cfg *config.Config) error {
	var err error
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsProvider(cfg)
		err = globalMetrics.Initialize(ctx)
	})
	return err
}

// GetMetrics returns the global metrics provider, nil before initialization
func GetMetrics() *MetricsProvider {
	return globalMetrics
}

// ShutdownGlobalMetrics shuts down the global metrics provider
func ShutdownGlobalMetrics(ctx context.Context) error {
	if globalMetrics != nil {
		return globalMetrics.Shutdown(ctx)
	}
	return nil
}
