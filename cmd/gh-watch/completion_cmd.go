package main

import (
	"fmt"
	"os"
)

const bashCompletion = `# bash completion for gh-watch
_gh_watch() {
    local cur prev commands
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    commands="watch once check init config guide completion version help"

    case "${prev}" in
        config)
            COMPREPLY=( $(compgen -W "path open" -- "${cur}") )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish" -- "${cur}") )
            return 0
            ;;
        -c|--config)
            COMPREPLY=( $(compgen -f -- "${cur}") )
            return 0
            ;;
    esac

    if [[ ${cur} == -* ]]; then
        COMPREPLY=( $(compgen -W "--config --json --dry-run --force --reset-state --help" -- "${cur}") )
        return 0
    fi

    COMPREPLY=( $(compgen -W "${commands}" -- "${cur}") )
}
complete -F _gh_watch gh-watch
`

const zshCompletion = `#compdef gh-watch
_gh_watch() {
    local -a commands
    commands=(
        'watch:Start watching with the interactive timeline'
        'once:Run a single poll cycle and exit'
        'check:Verify gh auth, notifications, and state database health'
        'init:Create a starter config.toml'
        'config:Show or open the active config file'
        'guide:Print a quickstart guide'
        'completion:Generate shell completion scripts'
        'version:Print the version'
    )

    _arguments -C \
        '(-c --config)'{-c,--config}'[config file path]:file:_files' \
        '1:command:->command' \
        '*::arg:->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                config)
                    _values 'subcommand' 'path' 'open'
                    ;;
                completion)
                    _values 'shell' 'bash' 'zsh' 'fish'
                    ;;
                once)
                    _arguments '--json[machine-readable output]' '--dry-run[classify without persisting]'
                    ;;
                init)
                    _arguments '--force[overwrite existing config]' '--reset-state[delete the state database]'
                    ;;
            esac
            ;;
    esac
}
_gh_watch "$@"
`

const fishCompletion = `# fish completion for gh-watch
complete -c gh-watch -f
complete -c gh-watch -n "__fish_use_subcommand" -a watch -d "Start watching with the interactive timeline"
complete -c gh-watch -n "__fish_use_subcommand" -a once -d "Run a single poll cycle and exit"
complete -c gh-watch -n "__fish_use_subcommand" -a check -d "Verify gh auth, notifications, and state database health"
complete -c gh-watch -n "__fish_use_subcommand" -a init -d "Create a starter config.toml"
complete -c gh-watch -n "__fish_use_subcommand" -a config -d "Show or open the active config file"
complete -c gh-watch -n "__fish_use_subcommand" -a guide -d "Print a quickstart guide"
complete -c gh-watch -n "__fish_use_subcommand" -a completion -d "Generate shell completion scripts"
complete -c gh-watch -n "__fish_use_subcommand" -a version -d "Print the version"
complete -c gh-watch -n "__fish_seen_subcommand_from config" -a "path open"
complete -c gh-watch -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
complete -c gh-watch -n "__fish_seen_subcommand_from once" -l json -d "Machine-readable output"
complete -c gh-watch -n "__fish_seen_subcommand_from once" -l dry-run -d "Classify without persisting"
complete -c gh-watch -n "__fish_seen_subcommand_from init" -l force -d "Overwrite existing config"
complete -c gh-watch -n "__fish_seen_subcommand_from init" -l reset-state -d "Delete the state database"
complete -c gh-watch -s c -l config -d "Config file path" -r
`

// handleCompletion prints the completion script for the requested shell.
func handleCompletion(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: gh-watch completion [bash|zsh|fish]")
		os.Exit(1)
	}
	switch args[0] {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unsupported shell: %s (supported: bash, zsh, fish)\n", args[0])
		os.Exit(1)
	}
}
