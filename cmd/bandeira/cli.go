package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BANDEIRA"

// opt is a single command line option that can also be set from the
// environment as BANDEIRA_<FLAG> with dashes turned into underscores.
type opt struct {
	dest interface{}
	flag string
	dflt interface{}
	desc string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// bindOptions registers opts as flags on cmd and binds them to v
func bindOptions(v *viper.Viper, cmd *cobra.Command, opts []opt) {
	for _, o := range opts {
		switch dest := o.dest.(type) {
		case *string:
			d, _ := o.dflt.(string)
			cmd.Flags().StringVar(dest, o.flag, d, o.desc)
		case *int:
			d, _ := o.dflt.(int)
			cmd.Flags().IntVar(dest, o.flag, d, o.desc)
		case *bool:
			d, _ := o.dflt.(bool)
			cmd.Flags().BoolVar(dest, o.flag, d, o.desc)
		case *time.Duration:
			d, _ := o.dflt.(time.Duration)
			cmd.Flags().DurationVar(dest, o.flag, d, o.desc)
		default:
			panic(fmt.Errorf("unsupported option type %T for --%s", o.dest, o.flag))
		}
		if err := v.BindPFlag(o.flag, cmd.Flags().Lookup(o.flag)); err != nil {
			panic(err)
		}
	}
}

// loadOptions resolves every option once flags are parsed.
// A flag set on the command line wins over the environment.
func loadOptions(v *viper.Viper, opts []opt) {
	for _, o := range opts {
		switch dest := o.dest.(type) {
		case *string:
			*dest = v.GetString(o.flag)
		case *int:
			*dest = v.GetInt(o.flag)
		case *bool:
			*dest = v.GetBool(o.flag)
		case *time.Duration:
			*dest = v.GetDuration(o.flag)
		}
	}
}
