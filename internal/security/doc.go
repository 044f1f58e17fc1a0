// Package security builds the posture report exposed by the engine.
package security
