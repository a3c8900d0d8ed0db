package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
)

var (
	reviewName     string
	reviewRating   int
	reviewComments string
)

var reviewsCmd = &cobra.Command{
	Use:     "reviews <restaurant-id>",
	GroupID: "reviews",
	Short:   "List the reviews of a restaurant, newest first",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			reviews, err := service.NewSession(coord, id).Reviews(ctx)
			if err != nil {
				return err
			}
			return printReviews(reviews)
		})
	},
}

var reviewCmd = &cobra.Command{
	Use:     "review",
	GroupID: "reviews",
	Short:   "Add or edit reviews",
}

var reviewAddCmd = &cobra.Command{
	Use:   "add <restaurant-id>",
	Short: "Add a review",
	Long: `Add a review to a restaurant. Offline, the review is kept locally with a
temporary negative id and created on the backend after reconnecting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			review, err := coord.AddReview(ctx, id, reviewName, reviewRating, reviewComments)
			if err != nil {
				return err
			}
			return printReview(review)
		})
	},
}

var reviewEditCmd = &cobra.Command{
	Use:   "edit <review-id>",
	Short: "Edit a review",
	Long: `Edit a stored review. Unset flags keep the current values. Negative ids
name reviews that exist only locally.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withCoordinator(cmd, func(ctx context.Context, coord *service.Coordinator) error {
			current, err := coord.FindReview(ctx, id)
			if err != nil {
				return err
			}

			name, rating, comments := current.Name, current.Rating, current.Comments
			if cmd.Flags().Changed("name") {
				name = reviewName
			}
			if cmd.Flags().Changed("rating") {
				rating = reviewRating
			}
			if cmd.Flags().Changed("comments") {
				comments = reviewComments
			}

			status := domain.SyncStatusSynchronized
			if current.IsDetached() {
				status = domain.SyncStatusDetached
			}
			review, err := coord.EditReview(ctx, id, status, name, rating, comments)
			if err != nil {
				return err
			}
			if review.ID != id {
				fmt.Printf("%s Review %d was created on the backend as %d\n", renderAccent("→"), id, review.ID)
			}
			return printReview(review)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{reviewAddCmd, reviewEditCmd} {
		cmd.Flags().StringVarP(&reviewName, "name", "n", "", "Reviewer name")
		cmd.Flags().IntVarP(&reviewRating, "rating", "r", 0, "Rating from 1 to 5")
		cmd.Flags().StringVarP(&reviewComments, "comments", "c", "", "Review text")
	}
	_ = reviewAddCmd.MarkFlagRequired("name")
	_ = reviewAddCmd.MarkFlagRequired("rating")
	_ = reviewAddCmd.MarkFlagRequired("comments")

	reviewCmd.AddCommand(reviewAddCmd, reviewEditCmd)
	rootCmd.AddCommand(reviewsCmd, reviewCmd)
}
