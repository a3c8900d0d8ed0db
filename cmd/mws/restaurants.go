package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	"github.com/jpgfer/mws-restaurant-1/internal/search"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
)

var (
	filterCuisine      string
	filterNeighborhood string
	searchLimit        int
)

var restaurantsCmd = &cobra.Command{
	Use:     "restaurants",
	GroupID: "browse",
	Short:   "List restaurants",
	Long: `List restaurants, optionally filtered by cuisine and neighborhood.
"all" matches any value.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			var (
				list []domain.Restaurant
				err  error
			)
			switch {
			case filterCuisine != "" && filterNeighborhood != "":
				list, err = coord.ByCuisineAndNeighborhood(ctx, filterCuisine, filterNeighborhood)
			case filterCuisine != "":
				list, err = coord.ByCuisine(ctx, filterCuisine)
			case filterNeighborhood != "":
				list, err = coord.ByNeighborhood(ctx, filterNeighborhood)
			default:
				list, err = coord.GetAll(ctx)
			}
			if err != nil {
				return err
			}
			return printRestaurants(list)
		})
	},
}

var restaurantCmd = &cobra.Command{
	Use:     "restaurant <id>",
	GroupID: "browse",
	Short:   "Show a restaurant with its reviews",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			session := service.NewSession(coord, id)
			r, err := session.Restaurant(ctx)
			if err != nil {
				return err
			}
			reviews, err := session.Reviews(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(struct {
					Restaurant *domain.Restaurant `json:"restaurant"`
					Reviews    []domain.Review    `json:"reviews"`
				}{r, reviews})
			}
			if err := printRestaurant(r); err != nil {
				return err
			}
			fmt.Println()
			return printReviews(reviews)
		})
	},
}

var neighborhoodsCmd = &cobra.Command{
	Use:     "neighborhoods",
	GroupID: "browse",
	Short:   "List the distinct neighborhoods",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			names, err := coord.Neighborhoods(ctx)
			if err != nil {
				return err
			}
			return printNames(names)
		})
	},
}

var cuisinesCmd = &cobra.Command{
	Use:     "cuisines",
	GroupID: "browse",
	Short:   "List the distinct cuisines",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			names, err := coord.Cuisines(ctx)
			if err != nil {
				return err
			}
			return printNames(names)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "browse",
	Short:   "Search stored restaurants by name, cuisine, neighborhood or address",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			list, err := coord.SearchWith(ctx, search.SearchParams{
				Query:        strings.Join(args, " "),
				Cuisine:      filterCuisine,
				Neighborhood: filterNeighborhood,
				Limit:        searchLimit,
			})
			if err != nil {
				return err
			}
			return printRestaurants(list)
		})
	},
}

var favoriteCmd = &cobra.Command{
	Use:     "favorite <id> [true|false]",
	GroupID: "browse",
	Short:   "Mark or unmark a restaurant as favorite",
	Long: `Mark a restaurant as favorite, or unmark it with "false". The change is
stored locally at once and pushed to the backend when it is reachable.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		favorite := true
		if len(args) == 2 {
			if favorite, err = strconv.ParseBool(args[1]); err != nil {
				return fmt.Errorf("invalid favorite value %q", args[1])
			}
		}
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			if _, err := coord.SetFavorite(ctx, id, favorite); err != nil {
				return err
			}
			coord.Wait()
			r, err := coord.GetByID(ctx, id)
			if err != nil {
				return err
			}
			return printRestaurant(r)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{restaurantsCmd, searchCmd} {
		cmd.Flags().StringVar(&filterCuisine, "cuisine", "", "Only restaurants of this cuisine")
		cmd.Flags().StringVar(&filterNeighborhood, "neighborhood", "", "Only restaurants in this neighborhood")
	}
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum number of results (default 20)")

	rootCmd.AddCommand(restaurantsCmd, restaurantCmd, neighborhoodsCmd, cuisinesCmd, searchCmd, favoriteCmd)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
