package api

import (
	"net/http"

	"github.com/arentkievits/odemis/internal/hardware"
)

// componentView is one inventory entry as listed by GET /components.
type componentView struct {
	Role     string          `json:"role"`
	Type     string          `json:"type"`
	Kind     hardware.Kind   `json:"kind,omitempty"`
	Axes     []hardware.Axis `json:"axes,omitempty"`
	Position map[string]any  `json:"position,omitempty"`
}

func (s *Server) handleListComponents(w http.ResponseWriter, _ *http.Request) {
	if s.components == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "inventory is not available")
		return
	}

	list := s.components.Components()
	out := make([]componentView, 0, len(list))
	for _, c := range list {
		out = append(out, viewComponent(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"microscope": s.path.MicroscopeRole(),
		"components": out,
		"count":      len(out),
	})
}

func viewComponent(c hardware.Component) componentView {
	act, ok := c.(hardware.Actuator)
	if !ok {
		return componentView{Role: c.Role(), Type: "detector"}
	}

	v := componentView{
		Role:     act.Role(),
		Type:     "actuator",
		Kind:     act.Kind(),
		Position: act.Position(),
	}
	for _, name := range act.AxisNames() {
		if ax, found := act.Axis(name); found {
			ax.Choices = ax.Choices.Sorted()
			v.Axes = append(v.Axes, ax)
		}
	}
	return v
}
