// Package services provides the centralized service registry for teachd.
//
// Registry pattern for accessing all core services (intent, memory,
// workflow, generation, speech, notify, session store). Use NewRegistry()
// to create a registry with service instances, then accessor methods to
// retrieve individual services.
package services
