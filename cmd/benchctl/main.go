// Command benchctl generates benchmark datasets, samples query latency from a
// running attendsvc and aggregates the sample log into summary tables.
package main

import "github.com/HatiCode/attendbench/cmd/benchctl/cli"

func main() {
	cli.Execute()
}
