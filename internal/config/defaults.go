package config

// DefaultConfigYAML is the config file written by `testherd init`.
const DefaultConfigYAML = `# testherd configuration
#
# Values not specified here use sensible defaults.

log:
  level: info
  format: auto

# Coordination directory shared by all workers of one test run.
coord:
  root: .testherd/coord
  lock_ttl: 30s
  lock_poll: 100ms
  lock_max_wait: 10s
  heartbeat_interval: 5s
  # Staleness window = staleness_factor x heartbeat_interval.
  # Set coord.staleness to an explicit duration to override.
  staleness_factor: 3
  barrier_timeout: 60s
  barrier_poll: 250ms

# Remote test-management API. The key can also come from TESTHERD_REMOTE_API_KEY.
remote:
  url: ""
  api_key: ""
  project_id: 0
  run_name: ""
  max_retries: 3

# Local archive of finished runs.
history:
  enabled: true
  path: .testherd/history.db

# Read-only status HTTP server (testherd serve).
serve:
  host: localhost
  port: 8790
  enable_cors: false
  cors_origins: []
`
