// Command crawlkit is the crawl orchestration core's entrypoint: submit
// queues a job, serve runs the supervisor loop against queued jobs, and
// status reports a job's progress and artifacts.
package main

import (
	cmd "github.com/crawlkit-dev/crawlkit/internal/cli"
)

func main() {
	cmd.Execute()
}
