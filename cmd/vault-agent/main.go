//
// This is free and unencumbered software released into the public domain.
//
// Anyone is free to copy, modify, publish, use, compile, sell, or
// distribute this software, either in source code form or as a compiled
// binary, for any purpose, commercial or non-commercial, and by any
// means.
//
// In jurisdictions that recognize copyright laws, the author or authors
// of this software dedicate any and all copyright interest in the
// software to the public domain. We make this dedication for the benefit
// of the public at large and to the detriment of our heirs and
// successors. We intend this dedication to be an overt act of
// relinquishment in perpetuity of all present and future rights to this
// software under copyright law.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
// MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
// IN NO EVENT SHALL THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR
// OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE,
// ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.
//
// For more information, please refer to <https://unlicense.org/>

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ladzaretti/vaultagent/cli"
	"github.com/ladzaretti/vaultagent/genericclioptions"
)

var Version = "0.0.0"

func main() {
	help := flag.Bool("help", false, "Show usage information")
	version := flag.Bool("version", false, "Show version")

	flag.Usage = func() {
		_, _ = fmt.Fprint(flag.CommandLine.Output(), `vault-agent - vault-backed SSH agent daemon.

Usage: vault-agent [options] [run|stop]

Serves OpenSSH agent requests from keys hydrated out of a vault database,
over a UNIX socket under the agent's state directory.

Options:
`)

		flag.PrintDefaults()
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	if *version {
		fmt.Printf("%v", Version)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"run"}
	}

	log.SetPrefix("[vault-agent] ")
	log.SetFlags(0)

	cmd := cli.NewCmdAgent(&genericclioptions.StdioOptions{IOStreams: genericclioptions.NewDefaultIOStreams()}, cli.NewVaultOptions())
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
