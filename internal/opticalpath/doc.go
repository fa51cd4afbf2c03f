// Package opticalpath drives the optical path of a SPARC microscope.
//
// Light collected by the parabolic mirror can be routed to the angle-resolved
// camera, to one of the spectrometers or to the CL detector. Each route is a
// named mode: the positions a set of actuators (lens switch, selectors,
// filter wheel, spectrograph) must reach. The Manager moves the hardware into
// a mode, records the transition, and infers the mode a stream needs from
// the detector it acquires from.
//
// # Architecture
//
//	┌───────────────────────────────────────────────────────────────────┐
//	│                        opticalpath.Manager                          │
//	│                                                                     │
//	│  ┌────────────────┐   ┌──────────────────┐   ┌──────────────────┐   │
//	│  │  Mode tables   │   │  AvailableModes  │   │     SetPath      │   │
//	│  │ (mode.go,      │──▶│  (available.go)  │──▶│  plan → issue →  │   │
//	│  │  table.go)     │   │ settable / guess │   │  await → record  │   │
//	│  └────────────────┘   └──────────────────┘   └──────────────────┘   │
//	│                                                     │               │
//	└─────────────────────────────────────────────────────│───────────────┘
//	            ┌────────────────┬────────────────┬───────┴────────┐
//	            ▼                ▼                ▼                ▼
//	   ┌────────────────┐ ┌─────────────┐ ┌──────────────┐ ┌─────────────┐
//	   │ hardware       │ │ SQLite      │ │ MQTT / WS    │ │ InfluxDB    │
//	   │ actuators      │ │ transitions │ │ path events  │ │ telemetry   │
//	   └────────────────┘ └─────────────┘ └──────────────┘ └─────────────┘
//
// # Modes
//
// ModesV1 is the table of the original SPARC, ModesV2 that of the SPARC2;
// TableFor picks one from the microscope role, and LoadTable reads a custom
// one from YAML. A mode is settable when its detector is present. Alignment
// modes (mirror-align, chamber-view, fiber-align, spec-focus) are never
// guessed, and leaving one restores the filter band and input slit saved on
// entry.
//
// GratingNotMirror is a special grating target meaning "any grating but the
// mirror": the last grating used is preferred, otherwise the first
// non-mirror choice by key.
//
// # Usage
//
//	mgr, err := opticalpath.NewManager(opticalpath.Options{
//	    Microscope: inventory,
//	    Registry:   inventory,
//	    Store:      opticalpath.NewSQLiteRepository(db.DB),
//	    Logger:     log,
//	})
//	if err != nil {
//	    return err
//	}
//
//	tr, err := mgr.SetPath(ctx, opticalpath.ModeAR)
//	if err != nil {
//	    return err // invalid mode, or no usable grating
//	}
//	if err := tr.Err(); err != nil {
//	    log.Warn("some moves failed", "error", err)
//	}
//
// # Thread Safety
//
// Manager methods are safe for concurrent use. SetPath calls are serialised.
package opticalpath
