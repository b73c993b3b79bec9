package main

/*
bio-rnaseq post-processes STAR gene counts and splice junction files.

  bio-rnaseq merge-gene-counts -input a.ReadsPerGene.out.tab -input b.ReadsPerGene.out.tab -output counts.tsv.gz
  bio-rnaseq merge-junctions -input a.SJ.out.tab -input b.SJ.out.tab -output junctions.tsv.gz
  bio-rnaseq augment -input ReadsPerGene.out.tab -gene-info gene_info.tsv -gencode-version 36 -output report.tsv
  bio-rnaseq gene-info -gtf gencode.v36.annotation.gtf.gz -output gene_info.tsv
*/

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/rnaseq/augment"
	"github.com/grailbio/rnaseq/geneinfo"
	"github.com/grailbio/rnaseq/merge"
	"v.io/x/lib/cmdline"
)

// pathsFlag collects the values of a repeatable flag. Each value may also be
// a comma-separated list.
type pathsFlag []string

func (p *pathsFlag) String() string { return strings.Join(*p, ",") }

func (p *pathsFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*p = append(*p, s)
		}
	}
	return nil
}

// tool is the argument set of one subcommand.
type tool interface {
	name() string
	check() error
}

type mergeGeneCountsArgs struct {
	inputs pathsFlag
	output string
}

type mergeJunctionsArgs struct {
	inputs pathsFlag
	output string
}

type augmentArgs struct {
	input          string
	geneInfo       string
	output         string
	gencodeVersion string
	authority      string
}

type geneInfoArgs struct {
	gtf    string
	output string
}

func (*mergeGeneCountsArgs) name() string { return "merge-gene-counts" }
func (*mergeJunctionsArgs) name() string  { return "merge-junctions" }
func (*augmentArgs) name() string         { return "augment" }
func (*geneInfoArgs) name() string        { return "gene-info" }

func requireFlags(t tool, flags map[string]bool) error {
	var missing []string
	for name, ok := range flags {
		if !ok {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%s: missing required flags %s", t.name(), strings.Join(missing, ", "))
	}
	return nil
}

func (a *mergeGeneCountsArgs) check() error {
	return requireFlags(a, map[string]bool{"input": len(a.inputs) > 0, "output": a.output != ""})
}

func (a *mergeJunctionsArgs) check() error {
	return requireFlags(a, map[string]bool{"input": len(a.inputs) > 0, "output": a.output != ""})
}

func (a *augmentArgs) check() error {
	return requireFlags(a, map[string]bool{
		"input":           a.input != "",
		"gene-info":       a.geneInfo != "",
		"output":          a.output != "",
		"gencode-version": a.gencodeVersion != "",
	})
}

func (a *geneInfoArgs) check() error {
	return requireFlags(a, map[string]bool{"gtf": a.gtf != "", "output": a.output != ""})
}

// run executes the subcommand described by t.
func run(ctx context.Context, t tool) error {
	if err := t.check(); err != nil {
		return err
	}
	log.Printf("Loading tool %s", t.name())
	var err error
	switch a := t.(type) {
	case *mergeGeneCountsArgs:
		err = merge.MergeGeneCounts(ctx, a.inputs, a.output, log.Info)
	case *mergeJunctionsArgs:
		err = merge.MergeJunctions(ctx, a.inputs, a.output, log.Info)
	case *augmentArgs:
		var authority augment.Authority
		if authority, err = augment.ParseAuthority(a.authority); err != nil {
			return err
		}
		err = augment.Augment(ctx, augment.Opts{
			CountsPath:     a.input,
			GeneInfoPath:   a.geneInfo,
			OutputPath:     a.output,
			GencodeVersion: a.gencodeVersion,
			Authority:      authority,
		}, log.Info)
	case *geneInfoArgs:
		err = geneinfo.Generate(ctx, a.gtf, a.output, log.Info)
	default:
		panic(t)
	}
	if err != nil {
		log.Error.Printf("%s: %v", t.name(), err)
		return err
	}
	log.Printf("Finished!")
	return nil
}

func runner(t tool) cmdline.Runner {
	return cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("%s takes no positional arguments, but got %v", t.name(), argv)
		}
		return run(context.Background(), t)
	})
}

func newCmdMergeGeneCounts() *cmdline.Command {
	args := &mergeGeneCountsArgs{}
	cmd := &cmdline.Command{
		Name:  args.name(),
		Short: "Formats and merges STAR gene counts files from the same sample",
	}
	cmd.Flags.Var(&args.inputs, "input", "Path to a STAR gene counts file. Use one or more times.")
	cmd.Flags.StringVar(&args.output, "output", "", "Path to the merged/formatted output file.")
	cmd.Runner = runner(args)
	return cmd
}

func newCmdMergeJunctions() *cmdline.Command {
	args := &mergeJunctionsArgs{}
	cmd := &cmdline.Command{
		Name:  args.name(),
		Short: "Formats and merges STAR junction counts files from the same sample",
	}
	cmd.Flags.Var(&args.inputs, "input", "Path to a STAR junction counts file. Use one or more times.")
	cmd.Flags.StringVar(&args.output, "output", "", "Path to the merged/formatted output file.")
	cmd.Runner = runner(args)
	return cmd
}

func newCmdAugment() *cmdline.Command {
	args := &augmentArgs{}
	cmd := &cmdline.Command{
		Name:  args.name(),
		Short: "Adds FPKM/FPKM-UQ/TPM and gene info columns to a STAR gene counts file",
	}
	cmd.Flags.StringVar(&args.input, "input", "", "Path to a STAR gene counts file.")
	cmd.Flags.StringVar(&args.geneInfo, "gene-info", "",
		"Table of gene information with columns: gene_id, total_exon_length, gene_name, gene_type, chromosome.")
	cmd.Flags.StringVar(&args.output, "output", "counts_report.tsv", "Output file name.")
	cmd.Flags.StringVar(&args.gencodeVersion, "gencode-version", "",
		"GENCODE version recorded in the '# gene-model' line of the output.")
	cmd.Flags.StringVar(&args.authority, "authority", "gene-info", `Table whose row count the join must preserve; "gene-info" or "counts".`)
	cmd.Runner = runner(args)
	return cmd
}

func newCmdGeneInfo() *cmdline.Command {
	args := &geneInfoArgs{}
	cmd := &cmdline.Command{
		Name:  args.name(),
		Short: "Builds the gene info table used by augment from a GENCODE GTF",
	}
	cmd.Flags.StringVar(&args.gtf, "gtf", "", "GENCODE GTF file.")
	cmd.Flags.StringVar(&args.output, "output", "gene_info.tsv", "Output file name.")
	cmd.Runner = runner(args)
	return cmd
}

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-rnaseq",
		Short:    "Utility functions for the RNA-Seq workflow",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdMergeGeneCounts(),
			newCmdMergeJunctions(),
			newCmdAugment(),
			newCmdGeneInfo(),
		},
	}
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}
