package handler

import (
	"log/slog"
	"net/http"

	"github.com/terabiome/mkcloud/internal/infrastructure/host"
	"github.com/terabiome/mkcloud/internal/service"
	"github.com/terabiome/mkcloud/pkg/executor"
)

// System handles system-related HTTP requests
type System struct {
	profile  *host.Profile
	executor executor.Executor
	logger   *slog.Logger
}

func NewSystem(profile *host.Profile, exec executor.Executor, logger *slog.Logger) *System {
	return &System{
		profile:  profile,
		executor: exec,
		logger:   logger,
	}
}

// HostInfo handles GET /host-info requests
func (h *System) HostInfo(writer http.ResponseWriter, request *http.Request) {
	info, err := service.DescribeHost(request.Context(), h.profile, h.executor)
	if err != nil {
		h.logger.Error("failed to describe host", slog.String("error", err.Error()))
		writeResult(writer, http.StatusInternalServerError, GenericResponse{
			Message: "failed to describe host",
			Error:   err.Error(),
		})
		return
	}
	if len(info.CPUInfo) == 0 {
		h.logger.Debug("lscpu output unavailable")
	}

	writeResult(writer, http.StatusOK, GenericResponse{
		Body:    info,
		Message: "retrieved host information successfully",
	})
}
