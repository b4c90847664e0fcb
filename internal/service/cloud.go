package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/terabiome/mkcloud/internal/api"
	"github.com/terabiome/mkcloud/internal/infrastructure/libvirt"
	"github.com/terabiome/mkcloud/internal/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "mkcloud/service"

// HypervisorProvider hands out the shared hypervisor connection. The caller
// must call release once done with it.
type HypervisorProvider interface {
	GetHypervisor() (hypervisor runtime.HypervisorContext, release func(), err error)
}

// CloudService provides transport-agnostic cloud operations.
type CloudService struct {
	assembler   *libvirt.Assembler
	manager     *libvirt.Manager
	connections HypervisorProvider
	validate    *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer

	domainStartCounter   metric.Int64Counter
	domainRemoveCounter  metric.Int64Counter
	networkDefineCounter metric.Int64Counter
	teardownDuration     metric.Float64Histogram
}

func NewCloudService(
	assembler *libvirt.Assembler,
	manager *libvirt.Manager,
	connections HypervisorProvider,
	logger *slog.Logger,
) *CloudService {
	meter := otel.Meter(instrumentationName)

	domainStartCounter, err := meter.Int64Counter(
		"mkcloud.domain.start",
		metric.WithDescription("Number of domains defined and booted"),
		metric.WithUnit("{domain}"),
	)
	if err != nil {
		logger.Warn("failed to create domainStartCounter metric", slog.String("error", err.Error()))
	}

	domainRemoveCounter, err := meter.Int64Counter(
		"mkcloud.domain.remove",
		metric.WithDescription("Number of single domain cleanups"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn("failed to create domainRemoveCounter metric", slog.String("error", err.Error()))
	}

	networkDefineCounter, err := meter.Int64Counter(
		"mkcloud.network.define",
		metric.WithDescription("Number of admin networks defined"),
		metric.WithUnit("{network}"),
	)
	if err != nil {
		logger.Warn("failed to create networkDefineCounter metric", slog.String("error", err.Error()))
	}

	teardownDuration, err := meter.Float64Histogram(
		"mkcloud.teardown.duration",
		metric.WithDescription("Duration of cloud teardowns"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create teardownDuration metric", slog.String("error", err.Error()))
	}

	return &CloudService{
		assembler:            assembler,
		manager:              manager,
		connections:          connections,
		validate:             validator.New(validator.WithRequiredStructEnabled()),
		logger:               logger.With(slog.String("service", "cloud")),
		tracer:               otel.Tracer(instrumentationName),
		domainStartCounter:   domainStartCounter,
		domainRemoveCounter:  domainRemoveCounter,
		networkDefineCounter: networkDefineCounter,
		teardownDuration:     teardownDuration,
	}
}

func (s *CloudService) RenderAdmin(ctx context.Context, req api.AdminRequest) (string, error) {
	_, span := s.tracer.Start(ctx, "RenderAdmin", trace.WithAttributes(attribute.String("cloud", req.Cloud)))
	defer span.End()

	xml, err := s.assembler.AdminConfig(req)
	return xml, recordError(span, err)
}

func (s *CloudService) RenderNetwork(ctx context.Context, req api.NetRequest) (string, error) {
	_, span := s.tracer.Start(ctx, "RenderNetwork", trace.WithAttributes(attribute.String("cloud", req.Cloud)))
	defer span.End()

	xml, err := s.assembler.NetConfig(req)
	return xml, recordError(span, err)
}

func (s *CloudService) RenderCompute(ctx context.Context, req api.ComputeRequest) (string, error) {
	_, span := s.tracer.Start(ctx, "RenderCompute", trace.WithAttributes(
		attribute.String("cloud", req.Cloud),
		attribute.Int("node", req.NodeCounter),
	))
	defer span.End()

	xml, err := s.assembler.ComputeConfig(req)
	return xml, recordError(span, err)
}

// ReadDescriptor loads a rendered document from disk.
func (s *CloudService) ReadDescriptor(path string) (string, error) {
	return s.manager.ReadDescriptor(path)
}

// WriteDescriptor stores a rendered document on disk.
func (s *CloudService) WriteDescriptor(path, xml string) error {
	return s.manager.WriteDescriptor(path, xml)
}

// StartNetwork defines the network described by req unless it already exists.
func (s *CloudService) StartNetwork(ctx context.Context, req api.DescriptorRequest) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "StartNetwork")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return false, recordError(span, fmt.Errorf("invalid network descriptor: %w", err))
	}

	hypervisor, release, err := s.connections.GetHypervisor()
	if err != nil {
		return false, recordError(span, fmt.Errorf("failed to get hypervisor connection: %w", err))
	}
	defer release()

	defined, err := s.manager.StartNetwork(hypervisor, req.XML)
	if err != nil {
		return false, recordError(span, err)
	}
	if defined {
		s.networkDefineCounter.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Bool("network.defined", defined))
	return defined, nil
}

// StartNode replaces and boots the domain described by req.
func (s *CloudService) StartNode(ctx context.Context, req api.DescriptorRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "StartNode")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return "", recordError(span, fmt.Errorf("invalid domain descriptor: %w", err))
	}

	hypervisor, release, err := s.connections.GetHypervisor()
	if err != nil {
		return "", recordError(span, fmt.Errorf("failed to get hypervisor connection: %w", err))
	}
	defer release()

	name, err := s.manager.StartNode(hypervisor, req.XML)
	if err != nil {
		return "", recordError(span, err)
	}

	span.SetAttributes(attribute.String("domain", name))
	s.domainStartCounter.Add(ctx, 1)
	return name, nil
}

// CleanupNode stops and removes one domain by name.
func (s *CloudService) CleanupNode(ctx context.Context, req api.NodeRequest) error {
	ctx, span := s.tracer.Start(ctx, "CleanupNode", trace.WithAttributes(attribute.String("domain", req.Name)))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return recordError(span, fmt.Errorf("invalid node request: %w", err))
	}

	hypervisor, release, err := s.connections.GetHypervisor()
	if err != nil {
		return recordError(span, fmt.Errorf("failed to get hypervisor connection: %w", err))
	}
	defer release()

	if err := s.manager.CleanupNode(hypervisor, req.Name); err != nil {
		return recordError(span, err)
	}
	s.domainRemoveCounter.Add(ctx, 1)
	return nil
}

// TeardownCloud removes everything belonging to a cloud. Resources that cannot
// be removed are logged and skipped; an error means the teardown could not run.
func (s *CloudService) TeardownCloud(ctx context.Context, req api.TeardownRequest) error {
	ctx, span := s.tracer.Start(ctx, "TeardownCloud", trace.WithAttributes(attribute.String("cloud", req.Cloud)))
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return recordError(span, fmt.Errorf("invalid teardown request: %w", err))
	}

	hypervisor, release, err := s.connections.GetHypervisor()
	if err != nil {
		return recordError(span, fmt.Errorf("failed to get hypervisor connection: %w", err))
	}
	defer release()

	startTime := time.Now()
	err = s.manager.TeardownCloud(hypervisor, req.Cloud, libvirt.TeardownOptions{
		Bridge:     req.Bridge,
		VLANPublic: req.VLANPublic,
	})
	s.teardownDuration.Record(ctx, time.Since(startTime).Seconds(),
		metric.WithAttributes(attribute.Bool("complete", err == nil)))

	if err != nil {
		return recordError(span, fmt.Errorf("teardown of cloud %s failed: %w", req.Cloud, err))
	}

	s.logger.Info("cloud torn down", slog.String("cloud", req.Cloud))
	return nil
}

func recordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
