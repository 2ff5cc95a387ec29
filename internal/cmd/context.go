package cmd

import (
	"bufio"
	"context"
	"io"

	"github.com/jimezsa/jobscrape/internal/config"
	"github.com/jimezsa/jobscrape/internal/ui"
	"github.com/rs/zerolog"
)

type Context struct {
	Base       context.Context
	In         *bufio.Reader
	Out        io.Writer
	Err        io.Writer
	UI         *ui.UI
	Config     config.Config
	ConfigDir  string
	Logger     zerolog.Logger
	Verbose    bool
	JSONOutput bool
	PlainText  bool
	Version    string
	ColorMode  ui.ColorMode
}

func (c *Context) context() context.Context {
	if c == nil || c.Base == nil {
		return context.Background()
	}
	return c.Base
}
