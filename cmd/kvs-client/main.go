// Command kvs-client issues one request to a kvs-server and prints the
// result, per spec.md §4.F / §6.
package main

import (
	"fmt"
	"net"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/lighkLife/kvs/internal/wire"
)

type sharedOpts struct {
	Addr string `long:"addr" default:"127.0.0.1:4000" description:"server address IP:PORT"`
}

type getCmd struct {
	sharedOpts
	Args struct {
		Key string `positional-arg-name:"KEY" required:"yes"`
	} `positional-args:"yes"`
}

type setCmd struct {
	sharedOpts
	Args struct {
		Key   string `positional-arg-name:"KEY" required:"yes"`
		Value string `positional-arg-name:"VALUE" required:"yes"`
	} `positional-args:"yes"`
}

type rmCmd struct {
	sharedOpts
	Args struct {
		Key string `positional-arg-name:"KEY" required:"yes"`
	} `positional-args:"yes"`
}

func (c *getCmd) Execute(_ []string) error {
	resp, err := roundTrip(c.Addr, wire.Request{Kind: wire.KindGet, Key: c.Args.Key})
	if err != nil {
		return err
	}
	switch resp.Status {
	case wire.StatusFound:
		fmt.Println(resp.Value)
	case wire.StatusNotFound:
		fmt.Println("Key not found")
	case wire.StatusErr:
		return fmt.Errorf("%s", resp.Message)
	}
	return nil
}

func (c *setCmd) Execute(_ []string) error {
	resp, err := roundTrip(c.Addr, wire.Request{Kind: wire.KindSet, Key: c.Args.Key, Value: c.Args.Value})
	if err != nil {
		return err
	}
	if resp.Status == wire.StatusErr {
		return fmt.Errorf("%s", resp.Message)
	}
	return nil
}

func (c *rmCmd) Execute(_ []string) error {
	resp, err := roundTrip(c.Addr, wire.Request{Kind: wire.KindRemove, Key: c.Args.Key})
	if err != nil {
		return err
	}
	if resp.Status == wire.StatusErr {
		return fmt.Errorf("%s", resp.Message)
	}
	return nil
}

func roundTrip(addr string, req wire.Request) (wire.Response, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return wire.Response{}, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if err := wire.WriteRequest(conn, req); err != nil {
		return wire.Response{}, fmt.Errorf("sending request: %w", err)
	}
	resp, err := wire.ReadResponse(conn)
	if err != nil {
		return wire.Response{}, fmt.Errorf("reading response: %w", err)
	}
	return resp, nil
}

func main() {
	var noTopLevelOpts struct{}
	parser := flags.NewParser(&noTopLevelOpts, flags.Default)
	if _, err := parser.AddCommand("get", "Get the value of a key", "", &getCmd{}); err != nil {
		panic(err)
	}
	if _, err := parser.AddCommand("set", "Set the value of a key", "", &setCmd{}); err != nil {
		panic(err)
	}
	if _, err := parser.AddCommand("rm", "Remove a key", "", &rmCmd{}); err != nil {
		panic(err)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
