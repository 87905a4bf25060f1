package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/property"
)

// VdsdView is one entry of the device list.
type VdsdView struct {
	DSUID        string `json:"dsuid"`
	Device       string `json:"device"`
	Vdc          string `json:"vdc"`
	SubIndex     int    `json:"sub_index"`
	Name         string `json:"name"`
	Model        string `json:"model,omitempty"`
	ZoneID       int    `json:"zone_id"`
	PrimaryGroup int    `json:"primary_group"`
	Output       bool   `json:"output"`
	Announced    bool   `json:"announced"`
}

// handleListDevices returns every vdSD.
//
// Query parameters:
//   - vdc: only devices of the vDC with this dSUID
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	reg := s.host.Registry()

	var devices []*device.Device
	if vdcID := r.URL.Query().Get("vdc"); vdcID != "" {
		id, err := dsuid.Parse(vdcID)
		if err != nil {
			writeBadRequest(w, "invalid vdc dSUID")
			return
		}
		devices = reg.ListDevicesOfVdc(id)
	} else {
		devices = reg.ListDevices()
	}

	views := make([]VdsdView, 0, len(devices))
	for _, d := range devices {
		for _, v := range d.Vdsds() {
			views = append(views, VdsdView{
				DSUID:        v.DSUID().String(),
				Device:       d.Base().String(),
				Vdc:          d.VdcDSUID().String(),
				SubIndex:     v.SubIndex(),
				Name:         v.Name(),
				Model:        v.Info().Model,
				ZoneID:       v.ZoneID(),
				PrimaryGroup: v.PrimaryGroup(),
				Output:       v.HasOutput(),
				Announced:    v.Announced(),
			})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns the property tree of any addressable entity:
// a vdSD, a vDC or the host itself.
//
// Query parameters:
//   - names: comma separated top-level properties; default all
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := dsuid.Parse(chi.URLParam(r, "dsuid"))
	if err != nil {
		writeBadRequest(w, "invalid dSUID")
		return
	}

	var query []*property.Element
	for _, n := range splitList(r.URL.Query().Get("names")) {
		query = append(query, property.Placeholder(n))
	}

	res, err := s.host.Properties(id.String(), query)
	if err != nil {
		if errors.Is(err, property.ErrNotFound) {
			writeNotFound(w, "entity not found")
			return
		}
		writeInternalError(w, "failed to read properties")
		return
	}

	resp := map[string]any{
		"dsuid":      id.String(),
		"properties": property.ToMap(res.Elements),
	}
	if !res.OK() {
		missing := make([]string, 0, len(res.Errors))
		for _, pe := range res.Errors {
			missing = append(missing, pe.Error())
		}
		resp["errors"] = missing
	}
	writeJSON(w, http.StatusOK, resp)
}
