package main

import "time"

const version = "0.1.0"

// shutdownGrace bounds how long Shutdown waits for in-flight WebSocket
// handlers to observe cancellation before main returns anyway.
const shutdownGrace = 5 * time.Second
