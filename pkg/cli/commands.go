package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/citizencard-qa/autotests-mobile/pkg/device"
	"github.com/citizencard-qa/autotests-mobile/pkg/logger"
	"github.com/citizencard-qa/autotests-mobile/pkg/otp"
	"github.com/citizencard-qa/autotests-mobile/pkg/userapi"
	"github.com/citizencard-qa/autotests-mobile/pkg/users"
	"github.com/urfave/cli/v2"
)

// provisionTimeout bounds one run of the provisioning chain.
const provisionTimeout = 5 * time.Minute

// initCommandLog sends the log to stderr in --verbose runs and discards it otherwise.
func initCommandLog(c *cli.Context) (func(), error) {
	if !c.Bool("verbose") {
		return func() {}, nil
	}
	if err := logger.InitWithOptions(os.DevNull, logger.Options{Verbose: true, Mirror: os.Stderr}); err != nil {
		return nil, err
	}
	return logger.Close, nil
}

var createUserCommand = &cli.Command{
	Name:  "create-user",
	Usage: "Provision a fresh test user with a digital card through the backend",
	Description: `Runs the provisioning chain once (CRM user, processing user,
gateway id, digital card) and prints the resulting user as JSON.

Examples:
  citizencard create-user
  citizencard --verbose create-user > user.json`,
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		closeLog, err := initCommandLog(c)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, cancel := withTimeout(c.Context, provisionTimeout)
		defer cancel()

		user, err := userapi.NewClient(cfg.Backend).CreateTestUser(ctx)
		if err != nil {
			return fmt.Errorf("create test user: %w", err)
		}

		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(user)
	},
}

var otpCommand = &cli.Command{
	Name:  "otp",
	Usage: "Read an SMS confirmation code from the notifications endpoint",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "phone",
			Usage: "Phone number the code was sent to",
		},
		&cli.StringFlag{
			Name:  "gateway-id",
			Usage: "Gateway id of the user",
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "Operation kind: " + strings.ToLower(joinKinds()),
			Value: "login",
		},
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "Poll until the code arrives instead of reading once",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Print every message text instead of extracting a code",
		},
	},
	Action: func(c *cli.Context) error {
		if c.String("phone") == "" && c.String("gateway-id") == "" {
			return fmt.Errorf("--phone or --gateway-id is required")
		}
		if c.Bool("all") && c.Bool("wait") {
			return fmt.Errorf("--all reads the notifications once and cannot be combined with --wait")
		}
		kind, err := otp.ParseKind(c.String("kind"))
		if err != nil {
			return err
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		closeLog, err := initCommandLog(c)
		if err != nil {
			return err
		}
		defer closeLog()

		helper := otp.FromConfig(cfg.OTP).Helper(c.String("phone"), c.String("gateway-id"))

		if c.Bool("all") {
			parser, err := helper.GetNotifications(c.Context)
			if err != nil {
				return err
			}
			for _, m := range parser.Messages() {
				fmt.Fprintln(c.App.Writer, m.Message)
			}
			return nil
		}

		var code string
		if c.Bool("wait") {
			code, err = helper.WaitForCode(c.Context, kind)
		} else {
			var parser *otp.Parser
			parser, err = helper.GetNotifications(c.Context)
			if err == nil {
				code, err = parser.Code(kind)
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, code)
		return nil
	},
}

func joinKinds() string {
	kinds := otp.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

var usersCommand = &cli.Command{
	Name:  "users",
	Usage: "Inspect the credential file",
	Subcommands: []*cli.Command{
		{
			Name:  "next",
			Usage: "Print the user the next scenario will log in with",
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				creds, err := users.NewStore(cfg.UsersFile).First()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "phone:    %s\npassword: %s\n", creds.Phone, creds.Password)
				return nil
			},
		},
		{
			Name:  "count",
			Usage: "Print how many users are left in the credential file",
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				lines, err := users.NewStore(cfg.UsersFile).Lines()
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, len(lines))
				return nil
			},
		},
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "List the registered scenarios",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "mark",
			Aliases: []string{"m"},
			Usage:   "Only list scenarios with one of these marks",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-mark",
			Usage: "Hide scenarios with these marks",
		},
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"k"},
			Usage:   "Only list scenarios whose name contains this text",
		},
	},
	Action: func(c *cli.Context) error {
		selected := selectScenarios(c)
		tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCENARIO\tPARAMS\tCASES\tMARKS\tCONSUMES USER")
		for _, s := range selected {
			consumes := ""
			if s.ConsumesUser {
				consumes = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				s.Name, s.Params, strings.Join(s.Cases, ","), strings.Join(s.Marks, ","), consumes)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "\n%d scenario(s)\n", len(selected))
		return nil
	},
}

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List Android devices visible to adb with their model and SDK level",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		adb, err := device.FindADB(cfg.AndroidHome)
		if err != nil {
			return err
		}
		ctx, cancel := withTimeout(c.Context, 30*time.Second)
		defer cancel()

		devices, err := device.ListDevices(ctx, adb)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(c.App.Writer, "No devices found")
			return nil
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SERIAL\tSTATE\tTYPE\tMODEL\tSDK")
		for _, d := range devices {
			// Unauthorized and offline devices cannot answer getprop.
			if d.State == "device" {
				if info, err := device.NewWithADB(d.Serial, adb).Info(ctx); err == nil {
					d.Model, d.SDK = info.Model, info.SDK
					d.IsEmulator = d.IsEmulator || info.IsEmulator
				}
			}
			kind := "device"
			if d.IsEmulator {
				kind = "emulator"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Serial, d.State, kind, d.Model, d.SDK)
		}
		return tw.Flush()
	},
}
