package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/okapi-platform/okapi/api/v1alpha1"
	"github.com/okapi-platform/okapi/internal/catalog"
	"github.com/okapi-platform/okapi/internal/pruner"
	"github.com/okapi-platform/okapi/internal/resolver"
	"github.com/okapi-platform/okapi/internal/tenant"
)

const cliTenant = "okapi-planner"

var setupLog = ctrl.Log.WithName("setup")

type config struct {
	catalogPath     string
	enabledPath     string
	requestPath     string
	mode            string
	output          string
	fixup           bool
	reinstall       bool
	maxIterations   int
	keepReleases    int
	keepPreReleases int
	metricsAddr     string
}

func bindFlags(fs *flag.FlagSet, cfg *config) {
	fs.StringVar(&cfg.catalogPath, "catalog", "", "Path to the module catalog (YAML or JSON list of module descriptors).")
	fs.StringVar(&cfg.enabledPath, "enabled", "", "Path to the modules currently enabled for the tenant.")
	fs.StringVar(&cfg.requestPath, "request", "", "Path to the install request. Use - for stdin.")
	fs.StringVar(&cfg.mode, "mode", "install", "One of install, check or obsolete.")
	fs.StringVar(&cfg.output, "output", "yaml", "Plan output format: yaml or json.")
	fs.BoolVar(&cfg.fixup, "fixup", true, "Disable conflicting or orphaned modules automatically.")
	fs.BoolVar(&cfg.reinstall, "reinstall", false, "Reinstall modules that are already enabled at the requested version.")
	fs.IntVar(&cfg.maxIterations, "max-iterations", 0, "Fixup pass budget. 0 derives it from the catalog size.")
	fs.IntVar(&cfg.keepReleases, "keep-releases", 2, "Releases to keep per product in obsolete mode.")
	fs.IntVar(&cfg.keepPreReleases, "keep-prereleases", 1, "Pre-releases to keep per product in obsolete mode.")
	fs.StringVar(&cfg.metricsAddr, "metrics-bind-address", "",
		"Serve planner metrics on this address once the output is written. The process then keeps running until interrupted. Empty disables it.")
}

func main() {
	var cfg config
	bindFlags(flag.CommandLine, &cfg)

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	ctx := ctrl.SetupSignalHandler()
	err := run(ctx, cfg, os.Stdin, os.Stdout)
	if resolver.IsUserError(err) {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err != nil {
		setupLog.Error(err, "planner failed", "mode", cfg.mode)
		os.Exit(1)
	}

	if cfg.metricsAddr != "" {
		if err := serveMetrics(ctx, cfg.metricsAddr); err != nil {
			setupLog.Error(err, "metrics server failed")
			os.Exit(1)
		}
	}
}

func run(ctx context.Context, cfg config, stdin io.Reader, stdout io.Writer) error {
	if cfg.catalogPath == "" {
		return errors.New("-catalog is required")
	}
	modules, err := catalog.LoadCatalogFile(cfg.catalogPath)
	if err != nil {
		return err
	}

	switch cfg.mode {
	case "install":
		return runInstall(ctx, cfg, modules, stdin, stdout)
	case "check":
		return runCheck(cfg, modules, stdout)
	case "obsolete":
		return runObsolete(cfg, modules, stdout)
	default:
		return fmt.Errorf("unknown mode %q", cfg.mode)
	}
}

func runInstall(ctx context.Context, cfg config, modules v1alpha1.Catalog, stdin io.Reader, stdout io.Writer) error {
	enabled, err := catalog.LoadEnabledFile(cfg.enabledPath)
	if err != nil {
		return err
	}
	var requested []v1alpha1.TenantModuleDescriptor
	if cfg.requestPath == "-" {
		requested, err = catalog.LoadRequestReader(stdin)
	} else {
		requested, err = catalog.LoadRequestFile(cfg.requestPath)
	}
	if err != nil {
		return err
	}

	mds := make([]v1alpha1.ModuleDescriptor, 0, len(modules))
	for _, md := range modules {
		mds = append(mds, md)
	}
	tenants := tenant.NewMemoryTenantStore()
	if err := tenants.Create(cliTenant); err != nil {
		return err
	}
	if err := tenants.SetEnabled(ctx, cliTenant, enabled); err != nil {
		return err
	}
	svc := tenant.NewService(tenant.NewMemoryModuleStore(mds...), tenants)

	actions, err := svc.Simulate(ctx, cliTenant, requested, tenant.Options{
		Fixup:         cfg.fixup,
		Reinstall:     cfg.reinstall,
		MaxIterations: cfg.maxIterations,
	})
	if err != nil {
		return err
	}
	out, err := catalog.MarshalActions(actions, cfg.output == "json")
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}

func runCheck(cfg config, modules v1alpha1.Catalog, stdout io.Writer) error {
	var msgs []string
	if msg := resolver.CheckAvailable(modules); msg != "" {
		msgs = append(msgs, msg)
	}
	if cfg.enabledPath != "" {
		enabled, err := catalog.LoadEnabledFile(cfg.enabledPath)
		if err != nil {
			return err
		}
		msgs = append(msgs, resolver.CheckEnabled(enabled)...)
	}
	for _, msg := range msgs {
		fmt.Fprintln(stdout, msg)
	}
	if len(msgs) > 0 {
		return &resolver.UserError{Message: fmt.Sprintf("%d problem(s) found", len(msgs))}
	}
	return nil
}

func runObsolete(cfg config, modules v1alpha1.Catalog, stdout io.Writer) error {
	mds := make([]v1alpha1.ModuleDescriptor, 0, len(modules))
	for _, md := range modules {
		mds = append(mds, md)
	}
	sort.Slice(mds, func(i, j int) bool { return mds[i].ID < mds[j].ID })
	for _, md := range pruner.Obsolete(mds, cfg.keepReleases, cfg.keepPreReleases) {
		fmt.Fprintln(stdout, md.ID)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	setupLog.Info("serving metrics until interrupted", "address", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
