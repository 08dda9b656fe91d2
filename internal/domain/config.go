package domain

// DefaultKeyPrefix namespaces every key the service writes.
// Overridden by storage.key_prefix in the config.
const DefaultKeyPrefix = "annosearch:"
