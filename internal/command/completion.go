// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/smops/internal/meta"
)

const bashCompletionScript = `# bash completion for smops
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_smops()
{
    local cur prev cmd sub
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "deploy efs env ou pipeline product registry completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    if [[ ${COMP_CWORD} -eq 2 ]]; then
        case "$cmd" in
            deploy)     COMPREPLY=( $(compgen -W "build test" -- "$cur") ) ;;
            efs)        COMPREPLY=( $(compgen -W "clean" -- "$cur") ) ;;
            env)        COMPREPLY=( $(compgen -W "show" -- "$cur") ) ;;
            ou)         COMPREPLY=( $(compgen -W "accounts" -- "$cur") ) ;;
            pipeline)   COMPREPLY=( $(compgen -W "definition upsert" -- "$cur") ) ;;
            product)    COMPREPLY=( $(compgen -W "provision terminate" -- "$cur") ) ;;
            registry)   COMPREPLY=( $(compgen -W "setup" -- "$cur") ) ;;
            completion) COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") ) ;;
        esac
        return 0
    fi

    sub=${COMP_WORDS[2]}
    local aws="--profile -p --region -r"
    local common="$aws --columns -a --color -c --filter -f --output -o --sort -s --titles -t --tldr"
    local poll="--poll-interval --poll-timeout --quiet -q"
    local project="--sagemaker-project-id --sagemaker-project-name --model-package-group-name --env-name --multi-account-deployment --staging-accounts --prod-accounts"
    local pipe="--sagemaker-project-name --pipeline-name --model-package-group-name --base-job-prefix --role-arn --data-bucket --model-bucket --xgboost-image --sklearn-image --spec"

    local opts="$common"
    case "$cmd $sub" in
        "deploy build")
            opts="$common $project --staging-config-name --prod-config-name --sagemaker-execution-role-staging-name --sagemaker-execution-role-prod-name --env-type-staging-name --env-type-prod-name --ebs-kms-key-arn --dir"
            ;;
        "deploy test")
            opts="$common --build-config --test-results-output"
            ;;
        "efs clean")
            opts="$common $poll --domain-id -d --delete-vpc --no-delete-vpc"
            ;;
        "env show")
            opts="$common --sagemaker-project-name --param"
            ;;
        "ou accounts")
            opts="$common --ou-id"
            ;;
        "pipeline definition")
            opts="$aws $pipe --tldr"
            ;;
        "pipeline upsert")
            opts="$common $pipe --scripts-dir --start"
            ;;
        "product provision")
            opts="$common --param-prefix --product-file --param --associate-role"
            ;;
        "product terminate")
            opts="$common $poll --param-prefix"
            ;;
        "registry setup")
            opts="$common $project --env-type"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
            return 0
            ;;
        --multi-account-deployment)
            COMPREPLY=( $(compgen -W "YES NO" -- "$cur") )
            return 0
            ;;
        --product-file|--build-config|--test-results-output|--spec)
            COMPREPLY=( $(compgen -f -- "$cur") )
            return 0
            ;;
        --dir|--scripts-dir)
            COMPREPLY=( $(compgen -o dirnames -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _smops smops
`

const zshCompletionScript = `#compdef smops

_smops() {
  local -a cmds
  cmds=(
    'deploy:model deployment stages'
    'efs:SageMaker domain EFS housekeeping'
    'env:data science environments'
    'ou:AWS Organizations units'
    'pipeline:SageMaker model building pipeline'
    'product:Service Catalog products'
    'registry:SageMaker model registry'
    'completion:generate shell completion script'
  )

  local -a aws common poll
  aws=(
  '(-p --profile)'{-p,--profile}'[AWS profile]:profile'
  '(-r --region)'{-r,--region}'[AWS region]:region'
  )
  common=(
  $aws
  '(-a --columns)'{-a,--columns}'[columns to include]:columns'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '(-s --sort)'{-s,--sort}'[sort columns]:columns'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '--tldr[show tldr page]'
  )
  poll=(
  '--poll-interval[time between status checks]:duration'
  '--poll-timeout[give up after]:duration'
  '(-q --quiet)'{-q,--quiet}'[no spinner]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'smops commands' cmds
    return
  fi

  if (( CURRENT == 3 )); then
    case $words[2] in
      deploy) _values 'subcommand' build test ;;
      efs) _values 'subcommand' clean ;;
      env) _values 'subcommand' show ;;
      ou) _values 'subcommand' accounts ;;
      pipeline) _values 'subcommand' definition upsert ;;
      product) _values 'subcommand' provision terminate ;;
      registry) _values 'subcommand' setup ;;
      completion) _values 'shell' bash zsh ;;
    esac
    return
  fi

  local curcontext="$curcontext" state line
  case "$words[2] $words[3]" in
    "deploy build"|"registry setup")
      _arguments -C $common \
        '--sagemaker-project-id[project id]:id' \
        '--sagemaker-project-name[project name]:name' \
        '--model-package-group-name[model package group]:group' \
        '--env-name[environment name]:name' \
        '--env-type[environment type]:type' \
        '--multi-account-deployment[multi-account]:switch:(YES NO)' \
        '--staging-accounts[staging accounts]:accounts' \
        '--prod-accounts[production accounts]:accounts' \
        '--dir[template directory]:dir:_directories'
      ;;
    "deploy test")
      _arguments -C $common \
        '--build-config[stage configuration]:file:_files' \
        '--test-results-output[results file]:file:_files'
      ;;
    "efs clean")
      _arguments -C $common $poll \
        '(-d --domain-id)'{-d,--domain-id}'[SageMaker domain id]:domain' \
        '--delete-vpc[delete the VPC]' \
        '--no-delete-vpc[keep the VPC]'
      ;;
    "env show")
      _arguments -C $common \
        '--param[extra SSM parameter]:suffix' \
        '1:project'
      ;;
    "ou accounts")
      _arguments -C $common '--ou-id[OU id]:ou' '*:ou'
      ;;
    "pipeline definition"|"pipeline upsert")
      _arguments -C $common \
        '--sagemaker-project-name[project name]:name' \
        '--pipeline-name[pipeline name]:name' \
        '--role-arn[execution role]:arn' \
        '--data-bucket[data bucket]:bucket' \
        '--model-bucket[model bucket]:bucket' \
        '--spec[tuning file]:file:_files -g "*.hcl"' \
        '--scripts-dir[scripts directory]:dir:_directories' \
        '--start[start an execution]'
      ;;
    "product provision")
      _arguments -C $common \
        '--product-file[product description]:file:_files' \
        '*--param[KEY=VALUE]:param' \
        '--associate-role[associate caller role first]'
      ;;
    "product terminate")
      _arguments -C $common $poll '1:provisioned product id'
      ;;
    *)
      _arguments -C $common
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _smops smops
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := writer(cmd)
	shell := cmd.Args().First()
	if shell == "" {
		// Try to detect from SHELL.
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		fmt.Fprintln(os.Stderr, "usage: smops completion [bash|zsh]")
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "smops completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
