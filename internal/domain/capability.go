/**
 * @description
 * This file names the capabilities consulted through the external authorization
 * collaborator before privileged operations. Capabilities are granted centrally and
 * optionally scoped to a single vault; the service never tracks grants itself.
 */

package domain

// Capability is a named role checked against the authorization service.
type Capability string

const (
	CapabilityDepositor         Capability = "depositor"
	CapabilityIssuer            Capability = "issuer"
	CapabilityEmergencyOperator Capability = "emergency_operator"
	CapabilityYieldExecutor     Capability = "yield_executor"
	CapabilityPlatformAdmin     Capability = "platform_admin"
)
