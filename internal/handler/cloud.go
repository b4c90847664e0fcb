package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/terabiome/mkcloud/internal/api"
	"github.com/terabiome/mkcloud/internal/infrastructure/device"
	"github.com/terabiome/mkcloud/internal/runtime"
	"github.com/terabiome/mkcloud/internal/service"
	"github.com/terabiome/mkcloud/pkg/templator"
)

// Cloud handles rendering and lifecycle HTTP requests
type Cloud struct {
	cloudService *service.CloudService
	logger       *slog.Logger
}

func NewCloud(cloudService *service.CloudService, logger *slog.Logger) *Cloud {
	return &Cloud{
		cloudService: cloudService,
		logger:       logger,
	}
}

type renderedXML struct {
	XML string `json:"xml"`
}

// RenderAdmin handles POST /render/admin
func (h *Cloud) RenderAdmin(writer http.ResponseWriter, request *http.Request) {
	var req api.AdminRequest
	if !decodeBody(writer, request, &req) {
		return
	}

	xml, err := h.cloudService.RenderAdmin(request.Context(), req)
	if err != nil {
		h.writeError(writer, "failed to render admin node", err)
		return
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    renderedXML{XML: xml},
		Message: "rendered admin node successfully",
	})
}

// RenderNetwork handles POST /render/network
func (h *Cloud) RenderNetwork(writer http.ResponseWriter, request *http.Request) {
	var req api.NetRequest
	if !decodeBody(writer, request, &req) {
		return
	}

	xml, err := h.cloudService.RenderNetwork(request.Context(), req)
	if err != nil {
		h.writeError(writer, "failed to render admin network", err)
		return
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    renderedXML{XML: xml},
		Message: "rendered admin network successfully",
	})
}

// RenderCompute handles POST /render/compute
func (h *Cloud) RenderCompute(writer http.ResponseWriter, request *http.Request) {
	var req api.ComputeRequest
	if !decodeBody(writer, request, &req) {
		return
	}

	xml, err := h.cloudService.RenderCompute(request.Context(), req)
	if err != nil {
		h.writeError(writer, "failed to render compute node", err)
		return
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    renderedXML{XML: xml},
		Message: "rendered compute node successfully",
	})
}

// StartNetwork handles POST /network/start
func (h *Cloud) StartNetwork(writer http.ResponseWriter, request *http.Request) {
	var req api.DescriptorRequest
	if !decodeBody(writer, request, &req) {
		return
	}

	defined, err := h.cloudService.StartNetwork(request.Context(), req)
	if err != nil {
		h.writeError(writer, "failed to start network", err)
		return
	}

	message := "network already defined"
	if defined {
		message = "defined network successfully"
	}
	writeResult(writer, http.StatusOK, GenericResponse{Message: message})
}

// StartNode handles POST /node/start
func (h *Cloud) StartNode(writer http.ResponseWriter, request *http.Request) {
	var req api.DescriptorRequest
	if !decodeBody(writer, request, &req) {
		return
	}

	name, err := h.cloudService.StartNode(request.Context(), req)
	if err != nil {
		h.writeError(writer, "failed to start node", err)
		return
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    api.NodeRequest{Name: name},
		Message: "started node successfully",
	})
}

// CleanupNode handles POST /node/cleanup
func (h *Cloud) CleanupNode(writer http.ResponseWriter, request *http.Request) {
	var req api.NodeRequest
	if !decodeBody(writer, request, &req) {
		return
	}

	if err := h.cloudService.CleanupNode(request.Context(), req); err != nil {
		h.writeError(writer, "failed to clean up node", err)
		return
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    req,
		Message: "cleaned up node successfully",
	})
}

// TeardownCloud handles POST /cloud/teardown
func (h *Cloud) TeardownCloud(writer http.ResponseWriter, request *http.Request) {
	var req api.TeardownRequest
	if !decodeBody(writer, request, &req) {
		return
	}

	if err := h.cloudService.TeardownCloud(request.Context(), req); err != nil {
		h.writeError(writer, "failed to tear down cloud", err)
		return
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    req,
		Message: "tore down cloud successfully",
	})
}

func (h *Cloud) writeError(writer http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, slog.String("error", err.Error()))
	}

	writeResult(writer, status, GenericResponse{
		Message: message,
		Error:   err.Error(),
	})
}

// statusFor maps configuration errors to 400 and lookup misses to 404.
func statusFor(err error) int {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors),
		errors.Is(err, device.ErrOverflow),
		errors.Is(err, device.ErrAddressConflict),
		errors.Is(err, templator.ErrUnknownPlaceholder):
		return http.StatusBadRequest
	case errors.Is(err, runtime.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
